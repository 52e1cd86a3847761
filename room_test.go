package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		secret:        "test-secret",
		roomSize:      10,
		countdownTime: 10 * time.Second,
		questionTime:  15 * time.Second,
		kickTimeout:   60 * time.Second,
		tokenLifetime: time.Hour,
	}
}

// testRoom drives room handlers directly, without the run loop or real
// timers, so every test is deterministic: ticks are injected by calling
// handleTick and deferred events are collected until flush.
type testRoom struct {
	*Room
	pending []func()
}

func newTestRoom(t *testing.T) *testRoom {
	t.Helper()

	quizName, questions, err := loadQuiz(quizFile)
	require.NoError(t, err)

	r := newRoom(testConfig(), quizName, questions)
	r.rng = rand.New(rand.NewSource(1))
	r.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return make(chan time.Time), func() {}
	}

	tr := &testRoom{Room: r}
	r.schedule = func(_ time.Duration, fn func()) {
		tr.pending = append(tr.pending, fn)
	}

	return tr
}

// flush runs deferred events (settle delays, system-message clears),
// including any they queue in turn.
func (tr *testRoom) flush() {
	for len(tr.pending) > 0 {
		fns := tr.pending
		tr.pending = nil
		for _, fn := range fns {
			fn()
		}
	}
}

func (tr *testRoom) connect() *Client {
	c := &Client{send: make(chan any, 1024)}
	tr.handleRegister(c)
	return c
}

func (tr *testRoom) join(t *testing.T, nickname string) (*Client, *Player) {
	t.Helper()

	c := tr.connect()
	tr.dispatch(c, ClientMessage{Type: "join", Nickname: nickname})

	p := tr.playerByID(c.playerID)
	require.NotNil(t, p, "join failed for %q", nickname)

	return c, p
}

func drain(c *Client) []any {
	var out []any
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func messagesOf[T any](c *Client) []T {
	var out []T
	for _, m := range drain(c) {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastOf[T any](t *testing.T, c *Client) T {
	t.Helper()

	all := messagesOf[T](c)
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func countHosts(players []*Player) int {
	hosts := 0
	for _, p := range players {
		if p.IsHost {
			hosts++
		}
	}
	return hosts
}

func TestFirstJoinerBecomesHost(t *testing.T) {
	tr := newTestRoom(t)

	_, alice := tr.join(t, "alice")
	_, bob := tr.join(t, "bob")

	assert.True(t, alice.IsHost)
	assert.False(t, bob.IsHost)
	assert.Equal(t, 1, countHosts(tr.players))
}

func TestJoinRefusedWhenRoomFull(t *testing.T) {
	tr := newTestRoom(t)

	for i := 0; i < 10; i++ {
		tr.join(t, "player"+string(rune('a'+i)))
	}

	c := tr.connect()
	tr.dispatch(c, ClientMessage{Type: "join", Nickname: "latecomer"})

	refusal := lastOf[JoinErrorMessage](t, c)
	assert.Equal(t, "The room is full", refusal.Message)
	assert.Len(t, tr.players, 10)
	assert.Empty(t, c.playerID)
}

func TestJoinIssuesVerifiableToken(t *testing.T) {
	tr := newTestRoom(t)

	c, p := tr.join(t, "alice")

	resp := lastOf[JoinResponseMessage](t, c)
	assert.True(t, resp.IsHost)
	assert.Equal(t, tr.quizName, resp.QuizName)

	id, err := tr.tokens.verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)
}

func TestCountdownExpiryStartsGame(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	spectator, _ := tr.join(t, "bob")
	drain(spectator)

	tr.dispatch(host, ClientMessage{Type: "startCountdown"})
	require.Equal(t, PhaseCountdown, tr.phase)
	require.Equal(t, 10, tr.countdownTime)

	for i := 0; i < 10; i++ {
		tr.handleTick(tr.countdownTimer)
	}

	seen := []int{}
	var questions []QuestionMessage
	for _, m := range drain(spectator) {
		switch msg := m.(type) {
		case CountdownMessage:
			seen = append(seen, msg.Seconds)
		case QuestionMessage:
			questions = append(questions, msg)
		}
	}

	assert.Equal(t, []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, seen)
	assert.Equal(t, PhaseQuestion, tr.phase)
	assert.Nil(t, tr.countdownTimer)
	assert.NotNil(t, tr.questionTimer)
	assert.Equal(t, 1, tr.displayedQuestionNumber)

	// game start dealt every player their opening hand
	for _, p := range tr.players {
		assert.Len(t, p.Abilities, startingAbilities)
	}

	require.Len(t, questions, 1)
	assert.Equal(t, tr.questions[0].ID, questions[0].Question.ID)
}

func TestCancelCountdownReturnsToLobby(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")

	tr.dispatch(host, ClientMessage{Type: "startCountdown"})
	stale := tr.countdownTimer

	tr.dispatch(host, ClientMessage{Type: "cancelCountdown"})

	assert.Equal(t, PhaseLobby, tr.phase)
	assert.Equal(t, 0, tr.countdownTime)
	assert.Nil(t, tr.countdownTimer)

	// a tick already queued from the cancelled handle is discarded
	tr.handleTick(stale)
	assert.Equal(t, PhaseLobby, tr.phase)
	assert.Equal(t, 0, tr.countdownTime)
}

func TestCancelCountdownOnlyLegalWhileCounting(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	tr.dispatch(host, ClientMessage{Type: "cancelCountdown"})

	assert.Equal(t, PhaseLobby, tr.phase)
}

func TestCountdownPauseFreezesDecrement(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	tr.dispatch(host, ClientMessage{Type: "startCountdown"})

	tr.dispatch(host, ClientMessage{Type: "toggleCountdownPause"})
	require.True(t, tr.lobbyPaused)

	tr.handleTick(tr.countdownTimer)
	tr.handleTick(tr.countdownTimer)
	assert.Equal(t, 10, tr.countdownTime)

	tr.dispatch(host, ClientMessage{Type: "toggleCountdownPause"})
	tr.handleTick(tr.countdownTimer)
	assert.Equal(t, 9, tr.countdownTime)
}

func TestSecondCountdownRefused(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	tr.dispatch(host, ClientMessage{Type: "startCountdown"})

	running := tr.countdownTimer
	tr.handleTick(running)

	tr.dispatch(host, ClientMessage{Type: "startCountdown"})

	assert.Same(t, running, tr.countdownTimer)
	assert.Equal(t, 9, tr.countdownTime)
}

func TestNonHostCannotDriveTransitions(t *testing.T) {
	tr := newTestRoom(t)

	tr.join(t, "alice")
	bob, _ := tr.join(t, "bob")
	drain(bob)

	tr.dispatch(bob, ClientMessage{Type: "startCountdown"})

	assert.Equal(t, PhaseLobby, tr.phase)
	notice := lastOf[SystemMessage](t, bob)
	assert.Equal(t, "That can't be done right now", notice.Text)
}

func startGameWith(t *testing.T, tr *testRoom, host *Client) {
	t.Helper()

	tr.dispatch(host, ClientMessage{Type: "startCountdown"})
	for i := 0; i < 10; i++ {
		tr.handleTick(tr.countdownTimer)
	}
	require.Equal(t, PhaseQuestion, tr.phase)
}

func expireQuestionTimer(t *testing.T, tr *testRoom) {
	t.Helper()

	for tr.questionTimer != nil {
		tr.handleTick(tr.questionTimer)
	}
}

func TestGradingCreditsCorrectAnswersOnly(t *testing.T) {
	tr := newTestRoom(t)

	host, alice := tr.join(t, "alice")
	bobClient, bob := tr.join(t, "bob")

	startGameWith(t, tr, host)
	question := tr.questions[0]
	drain(bobClient)

	tr.dispatch(host, ClientMessage{Type: "answer", QuestionID: question.ID, AnswerID: question.CorrectAnswerID})
	wrong := question.CorrectAnswerID%len(question.Answers) + 1
	tr.dispatch(bobClient, ClientMessage{Type: "answer", QuestionID: question.ID, AnswerID: wrong})

	expireQuestionTimer(t, tr)

	assert.Equal(t, scorePerAnswer, alice.Score)
	assert.Equal(t, 0, bob.Score)

	reveal := lastOf[ShowAnswersMessage](t, bobClient)
	assert.Equal(t, question.CorrectAnswerID, reveal.CorrectAnswerID)

	// the settle delay, then the next question
	tr.flush()
	assert.Equal(t, PhaseQuestion, tr.phase)
	assert.Equal(t, 2, tr.displayedQuestionNumber)
	assert.Equal(t, 1, tr.currentQuestionIndex)
}

func TestAnswerOverwritesEarlierAnswer(t *testing.T) {
	tr := newTestRoom(t)

	host, alice := tr.join(t, "alice")
	startGameWith(t, tr, host)
	question := tr.questions[0]

	tr.dispatch(host, ClientMessage{Type: "answer", QuestionID: question.ID, AnswerID: 1})
	tr.dispatch(host, ClientMessage{Type: "answer", QuestionID: question.ID, AnswerID: 2})

	assert.Equal(t, 2, alice.Answers[question.ID].AnswerID)
}

func TestAnswerIgnoredOutsideQuestionPhase(t *testing.T) {
	tr := newTestRoom(t)

	host, alice := tr.join(t, "alice")

	tr.dispatch(host, ClientMessage{Type: "answer", QuestionID: 1, AnswerID: 1})

	assert.Empty(t, alice.Answers)
}

func TestGamePauseFreezesQuestionTimer(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	startGameWith(t, tr, host)
	before := tr.remainingTime

	tr.dispatch(host, ClientMessage{Type: "pauseGame"})
	require.True(t, tr.paused)

	tr.handleTick(tr.questionTimer)
	assert.Equal(t, before, tr.remainingTime)

	tr.dispatch(host, ClientMessage{Type: "pauseGame"})
	tr.handleTick(tr.questionTimer)
	assert.Equal(t, before-1, tr.remainingTime)
}

func TestEndGameShortCircuitsToResults(t *testing.T) {
	tr := newTestRoom(t)

	host, alice := tr.join(t, "alice")
	bobClient, bob := tr.join(t, "bob")

	startGameWith(t, tr, host)
	alice.Score = 300
	bob.Score = 100
	tr.kicked["some-player"] = time.Now()
	drain(bobClient)

	tr.dispatch(host, ClientMessage{Type: "endGame"})

	assert.Equal(t, PhaseResults, tr.phase)
	assert.Nil(t, tr.questionTimer)
	assert.Nil(t, tr.countdownTimer)
	assert.Empty(t, tr.kicked)
	assert.Equal(t, 0, tr.displayedQuestionNumber)

	results := lastOf[GameResultsMessage](t, bobClient)
	require.NotNil(t, results.Results)
	assert.Equal(t, "alice", results.Results.Winner.Nickname)
	assert.Equal(t, "bob", results.Results.Lowest.Nickname)
}

func TestResultsTieBreaksByJoinOrder(t *testing.T) {
	tr := newTestRoom(t)

	tr.join(t, "alice")
	tr.join(t, "bob")
	tr.join(t, "carol")

	results := tr.calculateResults()
	require.NotNil(t, results)
	assert.Equal(t, "alice", results.Winner.Nickname)
	assert.Equal(t, "carol", results.Lowest.Nickname)
}

func TestQuestionExhaustionEndsGame(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	startGameWith(t, tr, host)

	for i := 0; i < len(tr.questions); i++ {
		require.Equal(t, PhaseQuestion, tr.phase)
		expireQuestionTimer(t, tr)
		tr.flush()
	}

	assert.Equal(t, PhaseResults, tr.phase)
}

func TestPhaseSequenceObservedByClients(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	spectator, _ := tr.join(t, "bob")

	startGameWith(t, tr, host)
	for i := 0; i < len(tr.questions); i++ {
		expireQuestionTimer(t, tr)
		tr.flush()
	}

	var phases []Phase
	for _, m := range messagesOf[GameStateMessage](spectator) {
		if len(phases) == 0 || phases[len(phases)-1] != m.State {
			phases = append(phases, m.State)
		}
	}

	require.NotEmpty(t, phases)
	assert.Equal(t, PhaseCountdown, phases[0])
	assert.Equal(t, PhaseQuestion, phases[1])
	assert.Equal(t, PhaseResults, phases[len(phases)-1])
	for _, p := range phases[1 : len(phases)-1] {
		assert.Equal(t, PhaseQuestion, p)
	}
}

func TestNewGameCanStartFromResults(t *testing.T) {
	tr := newTestRoom(t)

	host, alice := tr.join(t, "alice")
	_, bob := tr.join(t, "bob")

	startGameWith(t, tr, host)
	question := tr.questions[0]
	tr.dispatch(host, ClientMessage{Type: "answer", QuestionID: question.ID, AnswerID: question.CorrectAnswerID})
	alice.Score = 300
	bob.Score = 100

	tr.dispatch(host, ClientMessage{Type: "endGame"})
	require.Equal(t, PhaseResults, tr.phase)

	tr.dispatch(host, ClientMessage{Type: "startCountdown"})

	assert.Equal(t, PhaseCountdown, tr.phase)
	assert.Equal(t, 10, tr.countdownTime)
	require.NotNil(t, tr.countdownTimer)

	for i := 0; i < 10; i++ {
		tr.handleTick(tr.countdownTimer)
	}

	assert.Equal(t, PhaseQuestion, tr.phase)
	assert.Equal(t, 1, tr.displayedQuestionNumber)

	// the rematch starts from a clean slate
	for _, p := range tr.players {
		assert.Equal(t, 0, p.Score)
		assert.Empty(t, p.Answers)
	}
}

func TestRepeatJoinOnSameConnectionRefused(t *testing.T) {
	tr := newTestRoom(t)

	c, alice := tr.join(t, "alice")
	drain(c)

	tr.dispatch(c, ClientMessage{Type: "join", Nickname: "alice-again"})

	assert.Len(t, tr.players, 1)
	assert.Equal(t, alice.ID, c.playerID)
	refusal := lastOf[JoinErrorMessage](t, c)
	assert.Equal(t, "You have already joined", refusal.Message)
}

func TestKickRemovesPlayerAndNotifies(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	bobClient, bob := tr.join(t, "bob")
	drain(bobClient)

	tr.dispatch(host, ClientMessage{Type: "kickPlayer", TargetID: bob.ID})

	assert.Len(t, tr.players, 1)
	assert.Nil(t, tr.playerByID(bob.ID))
	assert.Contains(t, tr.kicked, bob.ID)
	assert.NotEmpty(t, messagesOf[KickedMessage](bobClient))
	assert.Equal(t, 1, countHosts(tr.players))
}

func TestKickOnlyAllowedForHost(t *testing.T) {
	tr := newTestRoom(t)

	_, alice := tr.join(t, "alice")
	bobClient, _ := tr.join(t, "bob")

	tr.dispatch(bobClient, ClientMessage{Type: "kickPlayer", TargetID: alice.ID})

	assert.Len(t, tr.players, 2)
	assert.True(t, alice.IsHost)
}

func TestKickingHostReassignsByJoinOrder(t *testing.T) {
	tr := newTestRoom(t)

	_, alice := tr.join(t, "alice")
	_, bob := tr.join(t, "bob")
	_, carol := tr.join(t, "carol")

	tr.kickPlayer(alice.ID)

	assert.True(t, bob.IsHost)
	assert.False(t, carol.IsHost)
	assert.Equal(t, 1, countHosts(tr.players))
}

func TestKickedPlayerCannotRestoreUntilTimeoutElapses(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	bobClient, bob := tr.join(t, "bob")
	token := lastOf[JoinResponseMessage](t, bobClient).Token

	tr.dispatch(host, ClientMessage{Type: "kickPlayer", TargetID: bob.ID})

	again := &Client{send: make(chan any, 1024), token: token}
	tr.handleRegister(again)
	restored := lastOf[SessionRestoredMessage](t, again)
	assert.True(t, restored.IsKicked)

	// backdate the kick past the timeout; the lazy sweep clears it
	tr.kicked[bob.ID] = time.Now().Add(-2 * tr.cfg.kickTimeout)
	assert.False(t, tr.isKicked(bob.ID))
	assert.Empty(t, tr.kicked)
}

func TestSessionRestoreReturnsFullSnapshot(t *testing.T) {
	tr := newTestRoom(t)

	host, _ := tr.join(t, "alice")
	bobClient, bob := tr.join(t, "bob")
	token := lastOf[JoinResponseMessage](t, bobClient).Token

	startGameWith(t, tr, host)
	bob.Score = 200

	tr.handleUnregister(bobClient)
	assert.False(t, bob.Connected)

	again := &Client{send: make(chan any, 1024), token: token}
	tr.handleRegister(again)

	restored := lastOf[SessionRestoredMessage](t, again)
	assert.False(t, restored.IsKicked)
	assert.Equal(t, bob.ID, restored.PlayerID)
	assert.Equal(t, 200, restored.Score)
	assert.Equal(t, PhaseQuestion, restored.GameState)
	assert.Equal(t, tr.quizName, restored.QuizName)
	assert.Equal(t, tr.remainingTime, restored.RemainingTime)
	assert.Equal(t, len(tr.questions), restored.TotalQuestions)
	require.NotNil(t, restored.CurrentQuestion)
	assert.Equal(t, tr.questions[0].ID, restored.CurrentQuestion.ID)
	assert.True(t, bob.Connected)
	assert.Equal(t, bob.ID, again.playerID)
}

func TestInvalidTokenIsExplicitlyInvalidated(t *testing.T) {
	tr := newTestRoom(t)

	c := &Client{send: make(chan any, 1024), token: "not-a-token"}
	tr.handleRegister(c)

	assert.NotEmpty(t, messagesOf[InvalidateTokenMessage](c))
}

func TestTokenForUnknownIdentityIsInvalidated(t *testing.T) {
	tr := newTestRoom(t)

	token, err := tr.tokens.issue("ghost-from-a-previous-life")
	require.NoError(t, err)

	c := &Client{send: make(chan any, 1024), token: token}
	tr.handleRegister(c)

	assert.NotEmpty(t, messagesOf[InvalidateTokenMessage](c))
}

func TestDisconnectKeepsPlayerInRoster(t *testing.T) {
	tr := newTestRoom(t)

	c, alice := tr.join(t, "alice")

	tr.handleUnregister(c)

	assert.False(t, alice.Connected)
	assert.NotNil(t, tr.playerByID(alice.ID))
}

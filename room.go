// Quiz Time
//
// A single live trivia session shared by every connected client.
//
// Each player joins with a nickname and avatar and receives a signed
// session token, so a dropped connection can be restored without losing
// score or abilities. The first player to join becomes the host and
// drives the game: a lobby countdown, a timed run of questions, and a
// results screen. Correct answers score points and occasionally grant
// one-shot abilities (reveal, trick, help, steal) that players spend
// against each other mid-question.
//
// Every mutation of room state flows through the run loop: inbound
// commands, timer ticks and deferred events are all channel-posted and
// processed one at a time, so no handler ever races another.

package main

import (
	"errors"
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseLobby     Phase = "LOBBY"
	PhaseCountdown Phase = "COUNTDOWN"
	PhaseQuestion  Phase = "QUESTION"
	PhaseResults   Phase = "RESULTS"
)

const (
	settleDelay      = 3 * time.Second
	systemClearDelay = 7 * time.Second
)

type envelope struct {
	client *Client
	msg    ClientMessage
}

type Room struct {
	cfg *Config

	clients map[*Client]bool
	players []*Player
	kicked  map[string]time.Time

	phase     Phase
	quizName  string
	questions []Question

	currentQuestionIndex    int
	displayedQuestionNumber int

	countdownTime int
	remainingTime int
	lobbyPaused   bool
	paused        bool

	countdownTimer *countdown
	questionTimer  *countdown

	messages []ChatMessage

	tokens    *sessionTokens
	rng       *rand.Rand
	newTicker tickerFactory
	schedule  func(d time.Duration, fn func())

	register chan *Client
	unreg    chan *Client
	inbound  chan envelope
	ticks    chan *countdown
	events   chan func()
}

func newRoom(cfg *Config, quizName string, questions []Question) *Room {
	r := &Room{
		cfg:       cfg,
		clients:   make(map[*Client]bool),
		kicked:    make(map[string]time.Time),
		phase:     PhaseLobby,
		quizName:  quizName,
		questions: questions,
		tokens:    newSessionTokens(cfg.secret, cfg.tokenLifetime),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		newTicker: defaultTicker,
		register:  make(chan *Client),
		unreg:     make(chan *Client),
		inbound:   make(chan envelope, 64),
		ticks:     make(chan *countdown, 16),
		events:    make(chan func(), 16),
	}

	r.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, func() {
			r.events <- fn
		})
	}

	return r
}

func (r *Room) run() {
	for {
		select {
		case c := <-r.register:
			r.safely(func() { r.handleRegister(c) })
		case c := <-r.unreg:
			r.safely(func() { r.handleUnregister(c) })
		case env := <-r.inbound:
			r.safely(func() { r.dispatch(env.client, env.msg) })
		case c := <-r.ticks:
			r.safely(func() { r.handleTick(c) })
		case fn := <-r.events:
			r.safely(fn)
		}
	}
}

// safely keeps a faulting handler from taking the whole room down.
func (r *Room) safely(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("%s | ERROR: recovered in room loop: %v", time.Now().Format(logDate), p)
		}
	}()

	fn()
}

// send delivers without blocking the loop; a client whose buffer is full
// is dropped rather than allowed to stall everyone else.
func (r *Room) send(c *Client, msg any) {
	if !r.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(r.clients, c)
		close(c.send)
	}
}

func (r *Room) broadcast(msg any) {
	for c := range r.clients {
		r.send(c, msg)
	}
}

func (r *Room) playerByID(id string) *Player {
	if id == "" {
		return nil
	}
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// userMessage converts a domain error into the text shown to players.
func userMessage(err error) string {
	switch {
	case errors.Is(err, errRoomFull):
		return "The room is full"
	case errors.Is(err, errKicked):
		return "You were kicked; try again in a minute"
	case errors.Is(err, errInvalidToken):
		return "Your session has expired, please join again"
	case errors.Is(err, errIllegalTransition):
		return "That can't be done right now"
	default:
		return "Something went wrong"
	}
}

func (r *Room) notifyPlayers() {
	roster := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		roster = append(roster, PlayerInfo{
			ID:        p.ID,
			Nickname:  p.Nickname,
			AvatarURL: p.AvatarURL,
			Score:     p.Score,
			IsHost:    p.IsHost,
			Connected: p.Connected,
			Abilities: p.Abilities,
		})
	}

	r.broadcast(PlayerListMessage{Type: "updatePlayers", Players: roster})
}

// sendSystemMessage broadcasts an ephemeral notice; the matching clear
// signal is emitted server-side so every client blanks it together.
func (r *Room) sendSystemMessage(text string) {
	r.broadcast(SystemMessage{Type: "systemMessage", Text: text})

	r.schedule(systemClearDelay, func() {
		r.broadcast(ClearSystemMessage{Type: "clearSystemMessage"})
	})
}

// notifyCaller is the private variant used for refused commands. The
// clear signal still goes to everyone, matching sendSystemMessage.
func (r *Room) notifyCaller(c *Client, text string) {
	r.send(c, SystemMessage{Type: "systemMessage", Text: text})

	r.schedule(systemClearDelay, func() {
		r.broadcast(ClearSystemMessage{Type: "clearSystemMessage"})
	})
}

func (r *Room) dispatch(c *Client, msg ClientMessage) {
	switch msg.Type {
	case "join":
		r.handleJoin(c, msg)
	case "startCountdown", "cancelCountdown", "toggleCountdownPause", "pauseGame", "endGame", "kickPlayer":
		r.handleHostCommand(c, msg)
	case "answer":
		r.handleAnswer(c, msg)
	case "useAbility":
		r.handleUseAbility(c, msg)
	case "sendMessage":
		r.handleChatMessage(c, msg)
	case "requestChatHistory":
		r.send(c, ChatHistoryMessage{Type: "chatHistory", Messages: r.messages})
	default:
		// ignore unknown types
	}
}

// ---- Session registry ----

// handleRegister runs when a socket connects. A connection carrying a
// valid token for a known identity is re-attached to its player; an
// invalid token is explicitly invalidated so the client discards it and
// joins fresh.
func (r *Room) handleRegister(c *Client) {
	r.clients[c] = true

	if c.token == "" {
		return
	}

	id, err := r.tokens.verify(c.token)
	if err != nil {
		logf(r.cfg, "GAMES: Rejected session token: %v", err)
		r.send(c, InvalidateTokenMessage{Type: "invalidateToken"})
		return
	}

	if r.isKicked(id) {
		r.send(c, SessionRestoredMessage{Type: "sessionRestored", IsKicked: true})
		return
	}

	p := r.playerByID(id)
	if p == nil {
		// Token from a previous process lifetime; nothing to restore.
		r.send(c, InvalidateTokenMessage{Type: "invalidateToken"})
		return
	}

	c.playerID = id
	p.Connected = true

	r.send(c, r.snapshot(p))
	r.notifyPlayers()

	logf(r.cfg, "GAMES: Player %q restored their session", p.Nickname)
}

func (r *Room) snapshot(p *Player) SessionRestoredMessage {
	msg := SessionRestoredMessage{
		Type:                    "sessionRestored",
		PlayerID:                p.ID,
		Nickname:                p.Nickname,
		AvatarURL:               p.AvatarURL,
		IsHost:                  p.IsHost,
		Score:                   p.Score,
		Abilities:               p.Abilities,
		GameState:               r.phase,
		QuizName:                r.quizName,
		CurrentQuestionIndex:    r.currentQuestionIndex,
		IsPaused:                r.paused,
		RemainingTime:           r.remainingTime,
		IsLobbyPaused:           r.lobbyPaused,
		CountdownTime:           r.countdownTime,
		DisplayedQuestionNumber: r.displayedQuestionNumber,
		TotalQuestions:          len(r.questions),
	}

	if r.phase == PhaseQuestion && r.currentQuestionIndex < len(r.questions) {
		q := r.questions[r.currentQuestionIndex]
		msg.CurrentQuestion = &q
	}

	if r.phase == PhaseResults {
		msg.GameResults = r.calculateResults()
	}

	return msg
}

func (r *Room) handleUnregister(c *Client) {
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}

	if c.playerID == "" {
		return
	}

	// Another tab may still hold the same identity.
	for other := range r.clients {
		if other.playerID == c.playerID {
			return
		}
	}

	if p := r.playerByID(c.playerID); p != nil {
		p.Connected = false
		r.notifyPlayers()
	}
}

// isKicked sweeps expired kick entries on every lookup.
func (r *Room) isKicked(id string) bool {
	now := time.Now()
	for pid, at := range r.kicked {
		if now.Sub(at) > r.cfg.kickTimeout {
			delete(r.kicked, pid)
		}
	}

	_, ok := r.kicked[id]
	return ok
}

func (r *Room) handleJoin(c *Client, msg ClientMessage) {
	if c.playerID != "" {
		r.send(c, JoinErrorMessage{Type: "joinError", Message: "You have already joined"})
		return
	}

	nickname := strings.TrimSpace(msg.Nickname)
	if nickname == "" {
		r.send(c, JoinErrorMessage{Type: "joinError", Message: "A nickname is required"})
		return
	}

	if len(r.players) >= r.cfg.roomSize {
		r.send(c, JoinErrorMessage{Type: "joinError", Message: userMessage(errRoomFull)})
		return
	}

	id := uuid.NewString()

	token, err := r.tokens.issue(id)
	if err != nil {
		logf(r.cfg, "GAMES: Failed to issue session token: %v", err)
		r.send(c, JoinErrorMessage{Type: "joinError", Message: userMessage(err)})
		return
	}

	p := newPlayer(id, nickname, msg.AvatarURL)
	r.players = append(r.players, p)
	if len(r.players) == 1 {
		r.setHost(id)
	}
	c.playerID = id

	logf(r.cfg, "GAMES: Player %q joined", nickname)

	r.sendSystemMessage(nickname + " joined the game")
	r.notifyPlayers()

	r.send(c, JoinResponseMessage{
		Type:     "joinResponse",
		Token:    token,
		IsHost:   p.IsHost,
		PlayerID: id,
		QuizName: r.quizName,
	})
}

// setHost marks exactly one player as host.
func (r *Room) setHost(playerID string) {
	for _, p := range r.players {
		p.IsHost = p.ID == playerID
	}
}

func (r *Room) handleHostCommand(c *Client, msg ClientMessage) {
	p := r.playerByID(c.playerID)
	if p == nil || !p.IsHost {
		r.notifyCaller(c, userMessage(errIllegalTransition))
		return
	}

	switch msg.Type {
	case "startCountdown":
		r.startCountdown(c)
	case "cancelCountdown":
		r.cancelCountdown()
	case "toggleCountdownPause":
		r.toggleCountdownPause()
	case "pauseGame":
		r.pauseGame(c)
	case "endGame":
		r.endGame()
	case "kickPlayer":
		r.kickPlayer(msg.TargetID)
	}
}

func (r *Room) kickPlayer(targetID string) {
	target := r.playerByID(targetID)
	if target == nil {
		return
	}

	dst := r.players[:0]
	for _, p := range r.players {
		if p.ID == targetID {
			continue
		}
		dst = append(dst, p)
	}
	r.players = dst
	r.kicked[targetID] = time.Now()

	for c := range r.clients {
		if c.playerID == targetID {
			r.send(c, KickedMessage{Type: "kicked"})
		}
	}

	logf(r.cfg, "GAMES: Player %q was kicked", target.Nickname)

	r.sendSystemMessage(target.Nickname + " was sent off to think about their behavior...")

	if target.IsHost && len(r.players) > 0 {
		r.setHost(r.players[0].ID)
	}
	r.notifyPlayers()
}

// ---- Phase controller ----

func (r *Room) startCountdown(c *Client) {
	if r.countdownTimer != nil {
		return
	}

	// RESULTS is only terminal until the host starts the next game.
	if r.phase != PhaseLobby && r.phase != PhaseResults {
		r.notifyCaller(c, userMessage(errIllegalTransition))
		return
	}

	if r.countdownTime <= 0 {
		r.countdownTime = int(r.cfg.countdownTime / time.Second)
	}

	r.phase = PhaseCountdown
	r.lobbyPaused = false

	r.broadcast(GameStateMessage{Type: "gameStateChange", State: r.phase})
	r.broadcast(CountdownMessage{Type: "updateCountdown", Seconds: r.countdownTime})
	r.broadcast(LobbyPausedMessage{Type: "lobbyPaused", Paused: false})
	r.sendSystemMessage("Good luck!")

	r.countdownTimer = startTicking(r.newTicker, time.Second, r.ticks)
}

func (r *Room) cancelCountdown() {
	if r.countdownTimer == nil {
		return
	}

	r.countdownTimer.cancel()
	r.countdownTimer = nil

	r.phase = PhaseLobby
	r.countdownTime = 0
	r.lobbyPaused = false

	r.broadcast(GameStateMessage{Type: "gameStateChange", State: r.phase})
	r.broadcast(CountdownMessage{Type: "updateCountdown", Seconds: 0})
	r.broadcast(LobbyPausedMessage{Type: "lobbyPaused", Paused: false})
}

func (r *Room) toggleCountdownPause() {
	if r.phase != PhaseCountdown {
		return
	}

	r.lobbyPaused = !r.lobbyPaused
	r.broadcast(LobbyPausedMessage{Type: "lobbyPaused", Paused: r.lobbyPaused})
}

func (r *Room) pauseGame(c *Client) {
	if r.phase != PhaseQuestion {
		r.notifyCaller(c, userMessage(errIllegalTransition))
		return
	}

	r.paused = !r.paused
	r.broadcast(GamePausedMessage{Type: "gamePaused", Paused: r.paused})
}

// handleTick processes one second of a running countdown. The handle
// identity check makes cancellation airtight: a tick already queued when
// its timer was cancelled or replaced no longer matches and is dropped.
func (r *Room) handleTick(c *countdown) {
	switch c {
	case r.countdownTimer:
		if r.lobbyPaused {
			return
		}

		r.countdownTime--
		r.broadcast(CountdownMessage{Type: "updateCountdown", Seconds: r.countdownTime})

		if r.countdownTime <= 0 {
			r.countdownTimer.cancel()
			r.countdownTimer = nil
			r.startGame()
		}

	case r.questionTimer:
		if r.paused {
			return
		}

		r.remainingTime--
		r.broadcast(TimerMessage{Type: "updateTimer", Seconds: r.remainingTime})

		if r.remainingTime <= 0 {
			r.questionTimer.cancel()
			r.questionTimer = nil
			r.gradeQuestion()
		}

	default:
		// stale handle
	}
}

func (r *Room) startGame() {
	// a restart after RESULTS must not carry scores or answers over
	for _, p := range r.players {
		p.Score = 0
		p.Answers = make(map[int]AnswerRecord)
	}
	r.assignAbilities()

	r.phase = PhaseQuestion
	r.currentQuestionIndex = 0
	r.displayedQuestionNumber = 0

	logf(r.cfg, "GAMES: Game started with %d players", len(r.players))

	r.broadcast(GameStateMessage{Type: "gameStateChange", State: r.phase})
	r.nextQuestion()
}

func (r *Room) nextQuestion() {
	r.displayedQuestionNumber++

	r.broadcast(QuestionNumberMessage{
		Type:    "updateQuestionNumber",
		Current: r.displayedQuestionNumber,
		Total:   len(r.questions),
	})

	if r.currentQuestionIndex >= len(r.questions) {
		r.endGame()
		return
	}

	if r.questionTimer != nil {
		r.questionTimer.cancel()
		r.questionTimer = nil
	}

	r.phase = PhaseQuestion
	question := r.questions[r.currentQuestionIndex]

	if r.currentQuestionIndex == 0 {
		r.sendSystemMessage("Here comes the first question!")
	} else if r.currentQuestionIndex == len(r.questions)-1 {
		r.sendSystemMessage("Last question!")
	}

	r.broadcast(QuestionMessage{Type: "updateQuestion", Question: question})
	r.broadcast(GameStateMessage{Type: "gameStateChange", State: r.phase})

	r.remainingTime = int(r.cfg.questionTime / time.Second)
	r.broadcast(TimerMessage{Type: "updateTimer", Seconds: r.remainingTime})

	r.questionTimer = startTicking(r.newTicker, time.Second, r.ticks)
}

func (r *Room) endGame() {
	r.phase = PhaseResults

	r.broadcast(GameResultsMessage{Type: "gameResults", Results: r.calculateResults()})
	r.broadcast(GameStateMessage{Type: "gameStateChange", State: r.phase})

	if r.questionTimer != nil {
		r.questionTimer.cancel()
		r.questionTimer = nil
	}
	if r.countdownTimer != nil {
		r.countdownTimer.cancel()
		r.countdownTimer = nil
	}

	// A fresh game is open to previously kicked players.
	r.kicked = make(map[string]time.Time)
	r.displayedQuestionNumber = 0

	logf(r.cfg, "GAMES: Game over")
}

// calculateResults sorts stably by descending score, so ties resolve by
// join order.
func (r *Room) calculateResults() *GameResults {
	if len(r.players) == 0 {
		return nil
	}

	sorted := make([]*Player, len(r.players))
	copy(sorted, r.players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	entry := func(p *Player) ResultEntry {
		return ResultEntry{
			ID:        p.ID,
			Nickname:  p.Nickname,
			AvatarURL: p.AvatarURL,
			Score:     p.Score,
		}
	}

	results := &GameResults{Winner: entry(sorted[0])}
	if len(sorted) > 1 {
		results.Lowest = entry(sorted[len(sorted)-1])
	}

	return results
}

// ---- Scoring & abilities ----

func (r *Room) handleAnswer(c *Client, msg ClientMessage) {
	p := r.playerByID(c.playerID)
	if p == nil || r.phase != PhaseQuestion {
		return
	}

	p.recordAnswer(msg.QuestionID, msg.AnswerID)
	r.notifyPlayers()
}

func (r *Room) gradeQuestion() {
	question := r.questions[r.currentQuestionIndex]

	for _, p := range r.players {
		record, ok := p.Answers[question.ID]
		if !ok || record.AnswerID != question.CorrectAnswerID {
			continue
		}

		p.Score += scorePerAnswer
		r.maybeGrantAbility(p)
	}

	r.broadcast(ShowAnswersMessage{Type: "showAnswers", CorrectAnswerID: question.CorrectAnswerID})
	r.notifyPlayers()

	r.schedule(settleDelay, func() {
		if r.phase != PhaseQuestion {
			return
		}

		r.currentQuestionIndex++
		if r.currentQuestionIndex < len(r.questions) {
			r.nextQuestion()
		} else {
			r.endGame()
		}
	})
}

func (r *Room) maybeGrantAbility(p *Player) {
	if r.rng.Float64() >= grantProbability || len(p.Abilities) >= abilityCap {
		return
	}

	available := make([]Ability, 0, len(abilityCatalog))
	for _, a := range abilityCatalog {
		if !p.holdsAbility(a.Type) {
			available = append(available, a)
		}
	}
	if len(available) == 0 {
		return
	}

	p.Abilities = append(p.Abilities, available[r.rng.Intn(len(available))])
}

// assignAbilities deals each player their starting hand of distinct
// abilities at game start.
func (r *Room) assignAbilities() {
	for _, p := range r.players {
		p.Abilities = []Ability{}

		for _, i := range r.rng.Perm(len(abilityCatalog))[:startingAbilities] {
			p.Abilities = append(p.Abilities, abilityCatalog[i])
		}
	}

	r.notifyPlayers()
}

func (r *Room) handleUseAbility(c *Client, msg ClientMessage) {
	p := r.playerByID(c.playerID)
	if p == nil {
		return
	}

	ability, ok := abilityByType(msg.AbilityType)
	if !ok || !p.holdsAbility(ability.Type) {
		// defensive check only; the client should never offer an
		// ability the server didn't grant
		logf(r.cfg, "GAMES: Ignored ability use by %q: %v", p.Nickname, errAbilityNotHeld)
		return
	}

	if r.phase != PhaseQuestion || r.paused {
		r.notifyCaller(c, "Abilities can only be used during an active question")
		return
	}

	var target *Player
	if abilityNeedsTarget(ability.Type) {
		target = r.playerByID(msg.TargetID)
		if target == nil {
			r.notifyCaller(c, "That ability needs a target")
			return
		}
	}

	p.spendAbility(ability.Type)
	r.send(c, AbilityUsedMessage{Type: "abilityUsed", Success: true, AbilityType: ability.Type})

	question := r.questions[r.currentQuestionIndex]

	switch ability.Type {
	case abilitySteal:
		if target.Score >= stealAmount {
			target.Score -= stealAmount
			p.Score += stealAmount
			r.sendSystemMessage("Someone stole points from " + target.Nickname + "!")
		} else {
			p.Score += stealAmount
			r.sendSystemMessage("Someone just happened to find a few coins in their pocket!")
		}

	case abilityReveal:
		r.send(c, ShowCorrectAnswerMessage{Type: "showCorrectAnswer", CorrectAnswerID: question.CorrectAnswerID})
		r.sendSystemMessage("Someone peeked at the right answer")

	case abilityTrick:
		wrong := make([]AnswerOption, 0, len(question.Answers))
		for _, a := range question.Answers {
			if a.ID != question.CorrectAnswerID {
				wrong = append(wrong, a)
			}
		}
		target.recordAnswer(question.ID, wrong[r.rng.Intn(len(wrong))].ID)
		r.sendSystemMessage("Someone swapped " + target.Nickname + "'s answer!")

	case abilityHelp:
		if record, ok := target.Answers[question.ID]; ok {
			r.send(c, ShowPlayerAnswerMessage{Type: "showPlayerAnswer", PlayerID: target.ID, AnswerID: record.AnswerID})
			r.sendSystemMessage("Someone peeked at " + target.Nickname + "'s answer!")
		}
	}

	logf(r.cfg, "GAMES: Player %q used ability %q", p.Nickname, ability.Type)

	r.notifyPlayers()
}

// ---- Chat ----

func (r *Room) handleChatMessage(c *Client, msg ClientMessage) {
	p := r.playerByID(c.playerID)
	text := strings.TrimSpace(msg.Text)
	if p == nil || text == "" {
		return
	}

	entry := ChatMessage{
		PlayerID:  p.ID,
		Nickname:  p.Nickname,
		Text:      text,
		Timestamp: time.Now(),
	}

	r.messages = appendMessage(r.messages, entry)
	r.broadcast(NewChatMessage{Type: "newMessage", Message: entry})
}

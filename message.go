package main

// Messages coming from clients. One tagged struct covers every command;
// the room dispatches on Type and reads only the fields that command uses.
type ClientMessage struct {
	Type        string `json:"type"`                  // see dispatch in room.go
	Nickname    string `json:"nickname,omitempty"`    // join
	AvatarURL   string `json:"avatarUrl,omitempty"`   // join
	TargetID    string `json:"targetId,omitempty"`    // kickPlayer / useAbility
	QuestionID  int    `json:"questionId,omitempty"`  // answer
	AnswerID    int    `json:"answerId,omitempty"`    // answer
	AbilityType string `json:"abilityType,omitempty"` // useAbility
	Text        string `json:"text,omitempty"`        // sendMessage
}

// PlayerInfo is the roster entry broadcast in updatePlayers.
type PlayerInfo struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatarUrl"`
	Score     int       `json:"score"`
	IsHost    bool      `json:"isHost"`
	Connected bool      `json:"connected"`
	Abilities []Ability `json:"abilities"`
}

// Sent to the joining client only, in response to a successful "join".
type JoinResponseMessage struct {
	Type     string `json:"type"` // "joinResponse"
	Token    string `json:"token"`
	IsHost   bool   `json:"isHost"`
	PlayerID string `json:"playerId"`
	QuizName string `json:"quizName"`
}

// Sent to the joining client only when a join is refused.
type JoinErrorMessage struct {
	Type    string `json:"type"` // "joinError"
	Message string `json:"message"`
}

// SessionRestoredMessage carries the full room snapshot a reconnecting
// client needs to resume, or just the kicked flag when the identity is
// still serving a kick timeout.
type SessionRestoredMessage struct {
	Type                    string       `json:"type"` // "sessionRestored"
	IsKicked                bool         `json:"isKicked,omitempty"`
	PlayerID                string       `json:"id,omitempty"`
	Nickname                string       `json:"nickname,omitempty"`
	AvatarURL               string       `json:"avatarUrl,omitempty"`
	IsHost                  bool         `json:"isHost,omitempty"`
	Score                   int          `json:"score"`
	Abilities               []Ability    `json:"abilities,omitempty"`
	GameState               Phase        `json:"gameState,omitempty"`
	QuizName                string       `json:"quizName,omitempty"`
	CurrentQuestionIndex    int          `json:"currentQuestionIndex"`
	CurrentQuestion         *Question    `json:"currentQuestion,omitempty"`
	IsPaused                bool         `json:"isPaused"`
	RemainingTime           int          `json:"remainingTime"`
	IsLobbyPaused           bool         `json:"isLobbyPaused"`
	CountdownTime           int          `json:"countdownTime"`
	DisplayedQuestionNumber int          `json:"displayedQuestionNumber"`
	GameResults             *GameResults `json:"gameResults,omitempty"`
	TotalQuestions          int          `json:"totalQuestions"`
}

// Tells the client its token failed verification and must be discarded.
type InvalidateTokenMessage struct {
	Type string `json:"type"` // "invalidateToken"
}

type PlayerListMessage struct {
	Type    string       `json:"type"` // "updatePlayers"
	Players []PlayerInfo `json:"players"`
}

type GameStateMessage struct {
	Type  string `json:"type"` // "gameStateChange"
	State Phase  `json:"state"`
}

type CountdownMessage struct {
	Type    string `json:"type"` // "updateCountdown"
	Seconds int    `json:"seconds"`
}

type LobbyPausedMessage struct {
	Type   string `json:"type"` // "lobbyPaused"
	Paused bool   `json:"paused"`
}

type GamePausedMessage struct {
	Type   string `json:"type"` // "gamePaused"
	Paused bool   `json:"paused"`
}

type QuestionMessage struct {
	Type     string   `json:"type"` // "updateQuestion"
	Question Question `json:"question"`
}

type TimerMessage struct {
	Type    string `json:"type"` // "updateTimer"
	Seconds int    `json:"seconds"`
}

type QuestionNumberMessage struct {
	Type    string `json:"type"` // "updateQuestionNumber"
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// Broadcast after grading, before the settle delay.
type ShowAnswersMessage struct {
	Type            string `json:"type"` // "showAnswers"
	CorrectAnswerID int    `json:"correctAnswerId"`
}

// Sent privately to a player who spent a reveal ability.
type ShowCorrectAnswerMessage struct {
	Type            string `json:"type"` // "showCorrectAnswer"
	CorrectAnswerID int    `json:"correctAnswerId"`
}

// Sent privately to a player who spent a help ability.
type ShowPlayerAnswerMessage struct {
	Type     string `json:"type"` // "showPlayerAnswer"
	PlayerID string `json:"playerId"`
	AnswerID int    `json:"answerId"`
}

type AbilityUsedMessage struct {
	Type        string `json:"type"` // "abilityUsed"
	Success     bool   `json:"success"`
	AbilityType string `json:"abilityType"`
}

// ResultEntry is one line of the final standings.
type ResultEntry struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
	Score     int    `json:"score"`
}

type GameResults struct {
	Winner ResultEntry `json:"winner"`
	Lowest ResultEntry `json:"lowest"`
}

type GameResultsMessage struct {
	Type    string       `json:"type"` // "gameResults"
	Results *GameResults `json:"results"`
}

// Sent to the kicked client only.
type KickedMessage struct {
	Type string `json:"type"` // "kicked"
}

type SystemMessage struct {
	Type string `json:"type"` // "systemMessage"
	Text string `json:"text"`
}

type ClearSystemMessage struct {
	Type string `json:"type"` // "clearSystemMessage"
}

type ChatHistoryMessage struct {
	Type     string        `json:"type"` // "chatHistory"
	Messages []ChatMessage `json:"messages"`
}

type NewChatMessage struct {
	Type    string      `json:"type"` // "newMessage"
	Message ChatMessage `json:"message"`
}

package main

import (
	"time"
)

// Player holds the data we store server-side. A player survives transport
// drops: the entry stays in the roster, flagged disconnected, until a
// client restores the session with a valid token.
type Player struct {
	ID        string
	Nickname  string
	AvatarURL string
	Score     int
	IsHost    bool
	Connected bool
	Answers   map[int]AnswerRecord
	Abilities []Ability
}

// AnswerRecord is a player's latest answer to one question. A later
// record for the same question fully replaces the earlier one.
type AnswerRecord struct {
	AnswerID  int       `json:"answerId"`
	Timestamp time.Time `json:"timestamp"`
}

func newPlayer(id, nickname, avatarURL string) *Player {
	return &Player{
		ID:        id,
		Nickname:  nickname,
		AvatarURL: avatarURL,
		Connected: true,
		Answers:   make(map[int]AnswerRecord),
		Abilities: []Ability{},
	}
}

func (p *Player) recordAnswer(questionID, answerID int) {
	p.Answers[questionID] = AnswerRecord{
		AnswerID:  answerID,
		Timestamp: time.Now(),
	}
}

func (p *Player) holdsAbility(abilityType string) bool {
	for _, a := range p.Abilities {
		if a.Type == abilityType {
			return true
		}
	}
	return false
}

// spendAbility removes one matching instance from the inventory.
func (p *Player) spendAbility(abilityType string) bool {
	for i, a := range p.Abilities {
		if a.Type == abilityType {
			p.Abilities = append(p.Abilities[:i], p.Abilities[i+1:]...)
			return true
		}
	}
	return false
}

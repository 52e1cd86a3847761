package main

import (
	"time"
)

const chatHistoryCap = 100

// ChatMessage is a single chat entry, kept in insertion order.
type ChatMessage struct {
	PlayerID  string    `json:"playerId"`
	Nickname  string    `json:"nickname"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// appendMessage adds a message to the bounded history, evicting the
// oldest entry once the cap is reached.
func appendMessage(history []ChatMessage, msg ChatMessage) []ChatMessage {
	history = append(history, msg)
	if len(history) > chatHistoryCap {
		history = history[1:]
	}
	return history
}

package models

import (
	"time"
)

// ChatMessage is a relayed chat message as delivered to the partner.
// Time is the original service's HH:MM wall-clock string; Timestamp is the
// machine-readable stamp.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender,omitempty"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
	System    bool      `json:"system,omitempty"`
}

// NewChatMessage stamps a message for delivery.
func NewChatMessage(id, text, sender string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        id,
		Text:      text,
		Sender:    sender,
		Time:      at.Format("15:04"),
		Timestamp: at,
	}
}

// NewSystemMessage stamps a server-originated notice, such as a partner
// leaving the chat.
func NewSystemMessage(id, text string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        id,
		Text:      text,
		Time:      at.Format("15:04"),
		Timestamp: at,
		System:    true,
	}
}

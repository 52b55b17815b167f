package models

import "time"

// LastMessage is the denormalized summary of the newest message in a room.
// It is rewritten every time a message is sent to the room and never otherwise.
type LastMessage struct {
	Text      string    `firestore:"text" json:"text"`
	Timestamp time.Time `firestore:"timestamp,serverTimestamp" json:"timestamp"`
}

// ChatRoom represents a two-party conversation. Participants holds exactly
// two identity emails; at most one room exists per unordered pair.
type ChatRoom struct {
	ID           string       `firestore:"-" json:"id"`
	Participants []string     `firestore:"participants" json:"participants"`
	CreatedAt    time.Time    `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	LastMessage  *LastMessage `firestore:"lastMessage" json:"lastMessage,omitempty"`
}

// HasParticipant reports whether the given email is part of this room.
func (r *ChatRoom) HasParticipant(email string) bool {
	for _, p := range r.Participants {
		if p == email {
			return true
		}
	}
	return false
}

// StartChatRequest represents the start chat request body
type StartChatRequest struct {
	Email string `json:"email" binding:"required"`
}

// OpenChatRequest represents the open chat request body. A null chatId
// closes the thread and returns the client to the inbox.
type OpenChatRequest struct {
	ChatID *string `json:"chatId"`
}

package models

import "time"

// Message status values
const (
	MessageStatusSent = "sent"
)

// ImagePlaceholder is the lastMessage summary used for image-only messages
const ImagePlaceholder = "Image"

// Message represents a single message in a chat room. A message carries
// text, an image URI, or both; creating one with neither is rejected.
type Message struct {
	ID          string    `firestore:"-" json:"id"`
	ChatID      string    `firestore:"chatId" json:"chatId"`
	SenderEmail string    `firestore:"senderEmail" json:"senderEmail"`
	Username    string    `firestore:"username" json:"username"`
	Text        string    `firestore:"text" json:"text,omitempty"`
	Image       string    `firestore:"image,omitempty" json:"image,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	Status      string    `firestore:"status" json:"status"`
	StarredBy   []string  `firestore:"starredBy" json:"starredBy"`
	IsUpdate    bool      `firestore:"isUpdate" json:"isUpdate"`
}

// StarredByUser reports whether the given identity has starred this message.
// Starring is per-viewer set membership, not a global boolean.
func (m *Message) StarredByUser(email string) bool {
	for _, e := range m.StarredBy {
		if e == email {
			return true
		}
	}
	return false
}

// SendMessageRequest represents the send message request body
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// UpdateMessageRequest represents the edit message request body
type UpdateMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// ToggleStarRequest carries the caller's last-known starredBy set. The set
// only decides the toggle direction; the write itself is an atomic
// server-side add/remove keyed on the caller identity.
type ToggleStarRequest struct {
	StarredBy []string `json:"starredBy"`
}

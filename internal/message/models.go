package message

import (
	"strings"
	"time"
)

// DateLayout is the human-readable local timestamp stored in StoredRecord.Date.
const DateLayout = "2006-01-02 15:04:05.000000"

// ChatMessage is what a browser submits and what travels over the relay.
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Trimmed returns a copy with surrounding whitespace removed from both fields.
func (m ChatMessage) Trimmed() ChatMessage {
	return ChatMessage{
		Username: strings.TrimSpace(m.Username),
		Message:  strings.TrimSpace(m.Message),
	}
}

// StoredRecord is the persisted document. It is created once per decoded
// frame and never updated.
type StoredRecord struct {
	Date     string `json:"date" bson:"date"`
	Username string `json:"username" bson:"username"`
	Message  string `json:"message" bson:"message"`
}

// NewRecord stamps a trimmed message with the receipt time.
func NewRecord(m ChatMessage, receivedAt time.Time) *StoredRecord {
	t := m.Trimmed()
	return &StoredRecord{
		Date:     receivedAt.Local().Format(DateLayout),
		Username: t.Username,
		Message:  t.Message,
	}
}

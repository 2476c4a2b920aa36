package domain

import "time"

// Sender identifies who sent a message
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

// Attachments carries explicit presence flags for non-text payloads.
// Media is set for any media payload, including the platform's explicit empty-media marker,
// in which case EmptyMedia is also set.
type Attachments struct {
	Media      bool
	EmptyMedia bool
	Voice      bool
	Poll       bool
	Contact    bool
	Location   bool
}

// Message is one raw message from a dialog window. It is never persisted as-is.
type Message struct {
	ID          int
	ChatID      int64
	Date        time.Time
	SenderID    int64 // 0 when the platform did not report a sender
	Sender      *Sender
	Text        string // empty means no text
	Attachments Attachments
}

// HasText reports whether the message carries text
func (m *Message) HasText() bool {
	return m.Text != ""
}

// DisplayText returns the text, or a bracketed type marker such as "[media message]"
func (m *Message) DisplayText() string {
	if m.HasText() {
		return m.Text
	}
	return "[" + string(m.Type()) + " message]"
}

// SenderUsername returns the sender's username or "" when unknown
func (m *Message) SenderUsername() string {
	if m.Sender == nil {
		return ""
	}
	return m.Sender.Username
}

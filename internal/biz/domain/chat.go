package domain

import "time"

// Dialog is one conversation as enumerated by the dialog source
type Dialog struct {
	ID          int64
	Name        string
	IsGroup     bool // basic group or channel
	UnreadCount int
}

// DisplayName returns the dialog name, or "Unknown" when the platform gave none
func (d *Dialog) DisplayName() string {
	if d.Name == "" {
		return "Unknown"
	}
	return d.Name
}

// Chat is the durable per-dialog rollup. Each run replaces its derived fields;
// LastReplyDate is owned by another writer and only read by the pipeline.
type Chat struct {
	ChatID          int64
	Name            string
	IsGroup         bool
	LastMessageDate time.Time // zero when no message was seen
	UrgencyScore    int
	NeedsFollowup   bool
	LastReplyDate   time.Time // zero when no reply is on record
}

// Opportunity records that a message triggered a service category
type Opportunity struct {
	ChatID    int64
	MessageID int
	Service   string
	Timestamp time.Time
}

// Transcript is the raw per-chat snapshot written to the transcript sink
type Transcript struct {
	ChatID       int64
	Name         string
	UnreadCount  int
	UrgencyScore int
	Messages     []Message // newest first, as fetched
}

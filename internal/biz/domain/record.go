package domain

import (
	"strconv"
	"strings"
	"time"
)

const none = "None"

// ExportRecord is one row of the run's export batch
type ExportRecord struct {
	ChatName              string    `json:"chat_name"`
	ChatID                int64     `json:"chat_id"`
	IsGroup               bool      `json:"is_group"`
	UnreadCount           int       `json:"unread_count"`
	UrgencyScore          int       `json:"urgency_score"`
	NeedsFollowup         bool      `json:"needs_followup"`
	Services              []string  `json:"service_opportunities"`
	FirstMessageDate      time.Time `json:"first_message_date"`
	LastUnreadMessageDate time.Time `json:"last_unread_message_date"`
	DurationUnreadMinutes float64   `json:"duration_unread_minutes"`
	LastSenderID          string    `json:"last_sender_id"`
	LastSenderUsername    string    `json:"last_sender_username"`
	LastSenderName        string    `json:"last_sender_name"`
	LastMessageType       string    `json:"last_message_type"`
	Language              string    `json:"language"`
	Summary               string    `json:"summary"`
}

// ExportColumns is the header of the tabular export
var ExportColumns = []string{
	"Chat Name",
	"Chat ID",
	"Is Group",
	"Unread Count",
	"Urgency Score",
	"Needs Followup",
	"Service Opportunities",
	"First Message Date",
	"Last Unread Message Date",
	"Duration Unread (min)",
	"Last Sender ID",
	"Last Sender Username",
	"Last Sender Name",
	"Last Message Type",
	"Language",
	"Summary",
}

// NewEmptyRecord returns the record of a dialog for which no message was fetched
func NewEmptyRecord(d Dialog) ExportRecord {
	return ExportRecord{
		ChatName:           d.DisplayName(),
		ChatID:             d.ID,
		IsGroup:            d.IsGroup,
		UnreadCount:        d.UnreadCount,
		LastSenderID:       none,
		LastSenderUsername: none,
		LastSenderName:     none,
		LastMessageType:    none,
		Language:           LanguageUnknown,
		Summary:            "N/A",
	}
}

// ServiceLabel joins the detected services, or "None"
func (r *ExportRecord) ServiceLabel() string {
	if len(r.Services) == 0 {
		return none
	}
	return strings.Join(r.Services, ", ")
}

// Row renders the record in ExportColumns order
func (r *ExportRecord) Row() []string {
	return []string{
		r.ChatName,
		strconv.FormatInt(r.ChatID, 10),
		strconv.FormatBool(r.IsGroup),
		strconv.Itoa(r.UnreadCount),
		strconv.Itoa(r.UrgencyScore),
		strconv.FormatBool(r.NeedsFollowup),
		r.ServiceLabel(),
		formatTime(r.FirstMessageDate),
		formatTime(r.LastUnreadMessageDate),
		strconv.FormatFloat(r.DurationUnreadMinutes, 'f', -1, 64),
		r.LastSenderID,
		r.LastSenderUsername,
		r.LastSenderName,
		r.LastMessageType,
		r.Language,
		r.Summary,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

package domain

import "strings"

// MessageType is the semantic type of a message
type MessageType string

const (
	MessageTypeMedia      MessageType = "media"
	MessageTypeVoice      MessageType = "voice"
	MessageTypePoll       MessageType = "poll"
	MessageTypeContact    MessageType = "contact"
	MessageTypeLocation   MessageType = "location"
	MessageTypeBotCommand MessageType = "bot_command"
	MessageTypeText       MessageType = "text"
	MessageTypeOther      MessageType = "other"
)

// Type classifies the message. The first matching predicate wins, in this order:
// media (not the empty marker), voice, poll, contact, location, leading-slash command, text, other.
func (m *Message) Type() MessageType {
	a := m.Attachments
	switch {
	case a.Media && !a.EmptyMedia:
		return MessageTypeMedia
	case a.Voice:
		return MessageTypeVoice
	case a.Poll:
		return MessageTypePoll
	case a.Contact:
		return MessageTypeContact
	case a.Location:
		return MessageTypeLocation
	case strings.HasPrefix(m.Text, "/"):
		return MessageTypeBotCommand
	case m.HasText():
		return MessageTypeText
	default:
		return MessageTypeOther
	}
}

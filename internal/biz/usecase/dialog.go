package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// DialogOutcome is the result of processing one dialog
type DialogOutcome struct {
	Record domain.ExportRecord
	Unread domain.Unread
}

// DialogUsecase runs the per-dialog stages: fetch, classify/score, summarize, persist, record
type DialogUsecase struct {
	fetcher     *HistoryFetcher
	chats       repo.ChatRepo
	summarizer  repo.Summarizer
	transcripts repo.TranscriptSink
	rules       domain.Rules
	now         func() time.Time
}

// NewDialogUsecase creates a new dialog usecase
func NewDialogUsecase(
	fetcher *HistoryFetcher,
	chats repo.ChatRepo,
	summarizer repo.Summarizer,
	transcripts repo.TranscriptSink,
	rules domain.Rules,
) *DialogUsecase {
	return &DialogUsecase{
		fetcher:     fetcher,
		chats:       chats,
		summarizer:  summarizer,
		transcripts: transcripts,
		rules:       rules,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock (used by tests)
func (uc *DialogUsecase) WithClock(now func() time.Time) *DialogUsecase {
	uc.now = now
	return uc
}

// Process runs every stage for one dialog. A returned error means the dialog is skipped;
// fetch problems and summary failures are absorbed and never returned.
func (uc *DialogUsecase) Process(ctx context.Context, dialog domain.Dialog) (*DialogOutcome, error) {
	log := logger.Component("dialog").With().Int64("chat_id", dialog.ID).Str("chat", dialog.DisplayName()).Logger()
	log.Info().Bool("is_group", dialog.IsGroup).Int("unread", dialog.UnreadCount).Msg("Processing dialog")

	lastReply, err := uc.chats.LastReplyDate(ctx, dialog.ID)
	if err != nil {
		return nil, fmt.Errorf("load last reply date: %w", err)
	}

	fetched := uc.fetcher.Fetch(ctx, dialog)
	messages := fetched.Messages

	record := domain.NewEmptyRecord(dialog)
	chat := &domain.Chat{
		ChatID:  dialog.ID,
		Name:    dialog.DisplayName(),
		IsGroup: dialog.IsGroup,
	}
	var opportunities []domain.Opportunity

	if len(messages) == 0 {
		log.Warn().Int("unread", dialog.UnreadCount).Msg("No messages fetched")
	} else {
		now := uc.now()
		latest := &messages[0]
		oldest := &messages[len(messages)-1]

		chat.LastMessageDate = latest.Date
		chat.UrgencyScore = uc.rules.Urgency(latest, dialog.IsGroup, now)
		chat.NeedsFollowup = uc.rules.NeedsFollowup(latest.Text, lastReply, now)

		services := uc.rules.Opportunities(latest.Text)
		for _, service := range services {
			opportunities = append(opportunities, domain.Opportunity{
				ChatID:    dialog.ID,
				MessageID: latest.ID,
				Service:   service,
				Timestamp: latest.Date,
			})
		}

		record.UrgencyScore = chat.UrgencyScore
		record.NeedsFollowup = chat.NeedsFollowup
		record.Services = services
		record.FirstMessageDate = oldest.Date
		record.LastUnreadMessageDate = latest.Date
		record.DurationUnreadMinutes = latest.Date.Sub(oldest.Date).Minutes()
		record.LastMessageType = string(latest.Type())
		record.Language = domain.DetectLanguage(latest.Text)
		fillSender(&record, latest)

		record.Summary = uc.summarize(ctx, messages, services)

		err := uc.transcripts.WriteTranscript(ctx, &domain.Transcript{
			ChatID:       dialog.ID,
			Name:         dialog.DisplayName(),
			UnreadCount:  dialog.UnreadCount,
			UrgencyScore: chat.UrgencyScore,
			Messages:     messages,
		})
		if err != nil {
			return nil, fmt.Errorf("write transcript: %w", err)
		}
	}

	if err := uc.chats.SaveDialog(ctx, chat, opportunities); err != nil {
		return nil, fmt.Errorf("save dialog: %w", err)
	}

	return &DialogOutcome{
		Record: record,
		Unread: domain.UnreadFor(dialog),
	}, nil
}

// summarize never fails: a collaborator error becomes an inline diagnostic
func (uc *DialogUsecase) summarize(ctx context.Context, messages []domain.Message, services []string) string {
	summary, err := uc.summarizer.Summarize(ctx, messages, services)
	if err != nil {
		logger.Component("dialog").Error().Err(err).Msg("Summary failed")
		return "Error: " + err.Error()
	}
	return summary
}

func fillSender(record *domain.ExportRecord, msg *domain.Message) {
	record.LastSenderID = "Unknown"
	record.LastSenderName = "Unknown"
	record.LastSenderUsername = "None"

	if msg.Sender != nil {
		record.LastSenderID = strconv.FormatInt(msg.Sender.ID, 10)
		if msg.Sender.Username != "" {
			record.LastSenderUsername = msg.Sender.Username
		}
		if msg.Sender.FirstName != "" {
			record.LastSenderName = msg.Sender.FirstName
		}
	} else if msg.SenderID != 0 {
		record.LastSenderID = strconv.FormatInt(msg.SenderID, 10)
	}
}

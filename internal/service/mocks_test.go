package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/usecase"
)

// Mock implementations

// mockSource serves fixed dialogs; history is keyed by chat id
type mockSource struct {
	mu        sync.Mutex
	dialogs   []domain.Dialog
	history   map[int64][]domain.Message
	panicOn   int64
	dialogErr error
	runs      int
}

func (m *mockSource) Dialogs(ctx context.Context) ([]domain.Dialog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	if m.dialogErr != nil {
		return nil, m.dialogErr
	}
	return m.dialogs, nil
}

func (m *mockSource) History(ctx context.Context, dialog domain.Dialog, offsetID, limit int) ([]domain.Message, error) {
	if dialog.ID == m.panicOn {
		panic("connection reset")
	}
	if offsetID != 0 {
		return nil, nil
	}
	return m.history[dialog.ID], nil
}

func (m *mockSource) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

type stubChatRepo struct {
	failChat int64
	saved    []int64
}

func (s *stubChatRepo) LastReplyDate(ctx context.Context, chatID int64) (time.Time, error) {
	if chatID == s.failChat {
		return time.Time{}, errors.New("database is locked")
	}
	return time.Time{}, nil
}

func (s *stubChatRepo) SaveDialog(ctx context.Context, chat *domain.Chat, opportunities []domain.Opportunity) error {
	s.saved = append(s.saved, chat.ChatID)
	return nil
}

func (s *stubChatRepo) GetChat(ctx context.Context, chatID int64) (*domain.Chat, error) {
	return nil, nil
}

func (s *stubChatRepo) ListFollowups(ctx context.Context, limit int) ([]*domain.Chat, error) {
	return nil, nil
}

func (s *stubChatRepo) ListOpportunities(ctx context.Context, chatID int64, service string, limit int) ([]*domain.Opportunity, error) {
	return nil, nil
}

func (s *stubChatRepo) SetLastReplyDate(ctx context.Context, chatID int64, t time.Time) error {
	return nil
}

func (s *stubChatRepo) Close() error {
	return nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, messages []domain.Message, services []string) (string, error) {
	return "summary", nil
}

type discardTranscripts struct{}

func (discardTranscripts) WriteTranscript(ctx context.Context, t *domain.Transcript) error {
	return nil
}

type recordingSink struct {
	batches [][]domain.ExportRecord
	err     error
}

func (s *recordingSink) Export(ctx context.Context, records []domain.ExportRecord) error {
	s.batches = append(s.batches, records)
	return s.err
}

type recordingNotifier struct {
	reports []*domain.RunReport
}

func (n *recordingNotifier) Notify(ctx context.Context, report *domain.RunReport) error {
	n.reports = append(n.reports, report)
	return nil
}

func newTestPipeline(source *mockSource, chats *stubChatRepo, sinks ...*recordingSink) *Pipeline {
	fetcher := usecase.NewHistoryFetcher(source, usecase.DefaultFetchConfig).
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
	dialogUC := usecase.NewDialogUsecase(fetcher, chats, stubSummarizer{}, discardTranscripts{}, domain.DefaultRules())
	p := NewPipeline(source, dialogUC)
	for _, s := range sinks {
		p.sinks = append(p.sinks, s)
	}
	return p
}

func oneMessage(id int, text string) []domain.Message {
	return []domain.Message{{ID: id, Date: time.Now().Add(-time.Minute), SenderID: 1, Text: text}}
}

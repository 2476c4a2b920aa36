package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
)

// Mock implementations

type historyCall struct {
	offsetID int
	limit    int
}

// mockDialogSource replays scripted History responses in order
type mockDialogSource struct {
	responses []historyResponse
	calls     []historyCall
}

type historyResponse struct {
	messages []domain.Message
	err      error
}

func (m *mockDialogSource) Dialogs(ctx context.Context) ([]domain.Dialog, error) {
	return nil, nil
}

func (m *mockDialogSource) History(ctx context.Context, dialog domain.Dialog, offsetID, limit int) ([]domain.Message, error) {
	m.calls = append(m.calls, historyCall{offsetID: offsetID, limit: limit})
	if len(m.responses) == 0 {
		return nil, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp.messages, resp.err
}

type mockChatRepo struct {
	mu            sync.Mutex
	lastReply     map[int64]time.Time
	chats         map[int64]*domain.Chat
	opportunities []domain.Opportunity
	saveErr       error
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{
		lastReply: make(map[int64]time.Time),
		chats:     make(map[int64]*domain.Chat),
	}
}

func (m *mockChatRepo) LastReplyDate(ctx context.Context, chatID int64) (time.Time, error) {
	return m.lastReply[chatID], nil
}

func (m *mockChatRepo) SaveDialog(ctx context.Context, chat *domain.Chat, opportunities []domain.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := *chat
	m.chats[chat.ChatID] = &c
	m.opportunities = append(m.opportunities, opportunities...)
	return nil
}

func (m *mockChatRepo) GetChat(ctx context.Context, chatID int64) (*domain.Chat, error) {
	return m.chats[chatID], nil
}

func (m *mockChatRepo) ListFollowups(ctx context.Context, limit int) ([]*domain.Chat, error) {
	return nil, nil
}

func (m *mockChatRepo) ListOpportunities(ctx context.Context, chatID int64, service string, limit int) ([]*domain.Opportunity, error) {
	return nil, nil
}

func (m *mockChatRepo) SetLastReplyDate(ctx context.Context, chatID int64, t time.Time) error {
	m.lastReply[chatID] = t
	return nil
}

func (m *mockChatRepo) Close() error {
	return nil
}

type mockSummarizer struct {
	summary  string
	err      error
	calls    int
	services []string
}

func (m *mockSummarizer) Summarize(ctx context.Context, messages []domain.Message, services []string) (string, error) {
	m.calls++
	m.services = services
	return m.summary, m.err
}

type mockTranscriptSink struct {
	written []*domain.Transcript
	err     error
}

func (m *mockTranscriptSink) WriteTranscript(ctx context.Context, t *domain.Transcript) error {
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, t)
	return nil
}

// recordingSleeper records requested waits without sleeping
type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func rateLimited(seconds int) historyResponse {
	return historyResponse{err: &domain.RateLimitError{
		Wait: time.Duration(seconds) * time.Second,
		Err:  errors.New("FLOOD_WAIT"),
	}}
}

func makeMessages(startID, n int, newest time.Time) []domain.Message {
	msgs := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, domain.Message{
			ID:   startID - i,
			Date: newest.Add(-time.Duration(i) * time.Minute),
			Text: "msg",
		})
	}
	return msgs
}

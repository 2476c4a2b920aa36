package data

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
)

func newTestStore(t *testing.T) *chatStore {
	t.Helper()
	r, err := NewChatStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r.(*chatStore)
}

func countRows(t *testing.T, s *chatStore, table string) int {
	t.Helper()
	var n int
	if err := s.db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestChatStore_SaveDialogIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 10, 11, 58, 0, 0, time.UTC)

	chat := &domain.Chat{ChatID: -1001, Name: "Partners", IsGroup: true, LastMessageDate: ts, UrgencyScore: 100, NeedsFollowup: true}
	opps := []domain.Opportunity{
		{ChatID: -1001, MessageID: 77, Service: "Security Audits", Timestamp: ts},
		{ChatID: -1001, MessageID: 77, Service: "Protocol Engineering", Timestamp: ts},
	}

	for i := 0; i < 2; i++ {
		if err := s.SaveDialog(ctx, chat, opps); err != nil {
			t.Fatalf("SaveDialog #%d: %v", i+1, err)
		}
	}

	if n := countRows(t, s, "chats"); n != 1 {
		t.Errorf("Expected 1 chat row, got %d", n)
	}
	if n := countRows(t, s, "opportunities"); n != 1 {
		t.Errorf("Expected 1 opportunity row, got %d", n)
	}

	got, err := s.GetChat(ctx, -1001)
	if err != nil || got == nil {
		t.Fatalf("GetChat: %v, %v", got, err)
	}
	if got.Name != "Partners" || !got.IsGroup || got.UrgencyScore != 100 || !got.NeedsFollowup {
		t.Errorf("Unexpected chat: %+v", got)
	}
	if !got.LastMessageDate.Equal(ts) {
		t.Errorf("Expected last message date %v, got %v", ts, got.LastMessageDate)
	}

	stored, err := s.ListOpportunities(ctx, -1001, "", 10)
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(stored) != 1 || stored[0].Service != "Security Audits" {
		t.Errorf("Expected first tag to be kept, got %+v", stored)
	}
}

func TestChatStore_UpsertPreservesLastReplyDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	reply := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	if err := s.SaveDialog(ctx, &domain.Chat{ChatID: 42, Name: "Alice", UrgencyScore: 30}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLastReplyDate(ctx, 42, reply); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDialog(ctx, &domain.Chat{ChatID: 42, Name: "Alice B", UrgencyScore: 60}, nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.LastReplyDate(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(reply) {
		t.Errorf("Expected last reply %v to survive the upsert, got %v", reply, got)
	}

	chat, _ := s.GetChat(ctx, 42)
	if chat.Name != "Alice B" || chat.UrgencyScore != 60 {
		t.Errorf("Expected derived fields to be replaced, got %+v", chat)
	}
}

func TestChatStore_LastReplyDateAbsentOrBroken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LastReplyDate(ctx, 7)
	if err != nil || !got.IsZero() {
		t.Errorf("Expected zero time for an unknown chat, got %v, %v", got, err)
	}

	if _, err := s.db.Exec(`INSERT INTO chats (chat_id, name, last_reply_date) VALUES (7, 'x', 'yesterday-ish')`); err != nil {
		t.Fatal(err)
	}
	got, err = s.LastReplyDate(ctx, 7)
	if err != nil || !got.IsZero() {
		t.Errorf("Expected zero time for an unparsable value, got %v, %v", got, err)
	}
}

func TestChatStore_ReadsForeignTimestampLayouts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	for i, raw := range []string{"2024-05-01 09:30:00", "2024-05-01T09:30:00Z", "2024-05-01 09:30:00+00:00"} {
		id := int64(100 + i)
		if _, err := s.db.Exec(`INSERT INTO chats (chat_id, name, last_reply_date) VALUES (?, 'x', ?)`, id, raw); err != nil {
			t.Fatal(err)
		}
		got, err := s.LastReplyDate(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(want) {
			t.Errorf("%q: expected %v, got %v", raw, want, got)
		}
	}
}

func TestChatStore_ListFollowups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chats := []*domain.Chat{
		{ChatID: 1, Name: "low", UrgencyScore: 20, NeedsFollowup: true},
		{ChatID: 2, Name: "none", UrgencyScore: 90, NeedsFollowup: false},
		{ChatID: 3, Name: "high", UrgencyScore: 80, NeedsFollowup: true},
	}
	for _, c := range chats {
		if err := s.SaveDialog(ctx, c, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListFollowups(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ChatID != 3 || got[1].ChatID != 1 {
		t.Errorf("Unexpected followups: %+v", got)
	}

	got, _ = s.ListFollowups(ctx, 1)
	if len(got) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(got))
	}
}

func TestChatStore_ListOpportunitiesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	save := func(chatID int64, msgID int, service string, at time.Time) {
		opp := domain.Opportunity{ChatID: chatID, MessageID: msgID, Service: service, Timestamp: at}
		if err := s.SaveDialog(ctx, &domain.Chat{ChatID: chatID}, []domain.Opportunity{opp}); err != nil {
			t.Fatal(err)
		}
	}
	save(1, 10, "DeFi Solutions", base)
	save(1, 11, "Security Audits", base.Add(time.Hour))
	save(2, 5, "Security Audits", base.Add(2*time.Hour))

	all, _ := s.ListOpportunities(ctx, 0, "", 10)
	if len(all) != 3 || all[0].ChatID != 2 {
		t.Errorf("Expected newest first across chats, got %+v", all)
	}

	audits, _ := s.ListOpportunities(ctx, 0, "Security Audits", 10)
	if len(audits) != 2 {
		t.Errorf("Expected 2 audits, got %d", len(audits))
	}

	chat1, _ := s.ListOpportunities(ctx, 1, "", 10)
	if len(chat1) != 2 || chat1[0].MessageID != 11 {
		t.Errorf("Unexpected chat 1 opportunities: %+v", chat1)
	}
	if !chat1[0].Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("Unexpected timestamp %v", chat1[0].Timestamp)
	}
}

func TestChatStore_SetLastReplyDateUnknownChat(t *testing.T) {
	s := newTestStore(t)

	err := s.SetLastReplyDate(context.Background(), 999, time.Now())
	if !errors.Is(err, domain.ErrChatNotFound) {
		t.Errorf("Expected ErrChatNotFound, got %v", err)
	}
}

func TestChatStore_GetChatUnknown(t *testing.T) {
	s := newTestStore(t)

	chat, err := s.GetChat(context.Background(), 5)
	if err != nil || chat != nil {
		t.Errorf("Expected nil, nil; got %v, %v", chat, err)
	}
}

func TestChatStore_EmptyDialogStoresNullDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveDialog(ctx, &domain.Chat{ChatID: 8, Name: "Quiet"}, nil); err != nil {
		t.Fatal(err)
	}
	chat, _ := s.GetChat(ctx, 8)
	if !chat.LastMessageDate.IsZero() {
		t.Errorf("Expected zero last message date, got %v", chat.LastMessageDate)
	}
}

func TestIsBusy(t *testing.T) {
	if !isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("Expected busy error to be detected")
	}
	if isBusy(errors.New("no such table")) {
		t.Error("Expected other errors not to be busy")
	}
}

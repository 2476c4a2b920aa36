package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/data"
)

func newTestServer(t *testing.T) (*DigestServer, repo.ChatRepo) {
	t.Helper()
	store, err := data.NewChatStore(filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	at := time.Date(2024, 5, 10, 11, 58, 0, 0, time.UTC)
	seed := []struct {
		chat *domain.Chat
		opps []domain.Opportunity
	}{
		{&domain.Chat{ChatID: -1001, Name: "Partners", IsGroup: true, LastMessageDate: at, UrgencyScore: 100, NeedsFollowup: true},
			[]domain.Opportunity{{ChatID: -1001, MessageID: 77, Service: "Security Audits", Timestamp: at}}},
		{&domain.Chat{ChatID: 42, Name: "Alice", LastMessageDate: at, UrgencyScore: 35, NeedsFollowup: true}, nil},
		{&domain.Chat{ChatID: 43, Name: "Bob", UrgencyScore: 90}, nil},
	}
	for _, s := range seed {
		if err := store.SaveDialog(ctx, s.chat, s.opps); err != nil {
			t.Fatal(err)
		}
	}

	s := NewServer(store, "test")
	s.now = func() time.Time { return time.Date(2024, 5, 11, 8, 0, 0, 0, time.UTC) }
	return s, store
}

func TestListFollowups(t *testing.T) {
	s, _ := newTestServer(t)

	_, out, err := s.handleListFollowups(context.Background(), nil, ListFollowupsInput{})
	if err != nil || out.Error != "" {
		t.Fatalf("Unexpected error: %v %s", err, out.Error)
	}
	if len(out.Chats) != 2 || out.Chats[0].Name != "Partners" || out.Chats[1].Name != "Alice" {
		t.Errorf("Unexpected chats: %+v", out.Chats)
	}
	if out.Chats[0].LastMessageDate != "2024-05-10T11:58:00Z" {
		t.Errorf("Unexpected date: %s", out.Chats[0].LastMessageDate)
	}
}

func TestGetChat(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, out, _ := s.handleGetChat(ctx, nil, GetChatInput{ChatID: -1001})
	if !out.Found || out.Chat.UrgencyScore != 100 {
		t.Fatalf("Unexpected output: %+v", out)
	}
	if len(out.Opportunities) != 1 || out.Opportunities[0].Service != "Security Audits" {
		t.Errorf("Unexpected opportunities: %+v", out.Opportunities)
	}

	_, missing, _ := s.handleGetChat(ctx, nil, GetChatInput{ChatID: 999})
	if missing.Found || missing.Chat != nil || missing.Error != "" {
		t.Errorf("Expected not found without error, got %+v", missing)
	}
}

func TestListOpportunities(t *testing.T) {
	s, _ := newTestServer(t)

	_, out, _ := s.handleListOpportunities(context.Background(), nil, ListOpportunitiesInput{Service: "DeFi Solutions"})
	if len(out.Opportunities) != 0 || out.Error != "" {
		t.Errorf("Expected no DeFi opportunities, got %+v", out)
	}

	_, out, _ = s.handleListOpportunities(context.Background(), nil, ListOpportunitiesInput{})
	if len(out.Opportunities) != 1 || out.Opportunities[0].MessageID != 77 {
		t.Errorf("Unexpected opportunities: %+v", out)
	}
}

func TestMarkReplied(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	_, out, _ := s.handleMarkReplied(ctx, nil, MarkRepliedInput{ChatID: 42})
	if !out.Success || out.RepliedAt != "2024-05-11T08:00:00Z" {
		t.Fatalf("Unexpected output: %+v", out)
	}
	got, _ := store.LastReplyDate(ctx, 42)
	if !got.Equal(s.now()) {
		t.Errorf("Expected reply date to be stored, got %v", got)
	}

	_, out, _ = s.handleMarkReplied(ctx, nil, MarkRepliedInput{ChatID: 42, RepliedAt: "2024-05-01T10:00:00+02:00"})
	if !out.Success || out.RepliedAt != "2024-05-01T08:00:00Z" {
		t.Errorf("Unexpected output: %+v", out)
	}

	_, out, _ = s.handleMarkReplied(ctx, nil, MarkRepliedInput{ChatID: 42, RepliedAt: "yesterday"})
	if out.Success || !strings.Contains(out.Error, "invalid replied_at") {
		t.Errorf("Expected parse error, got %+v", out)
	}

	_, out, _ = s.handleMarkReplied(ctx, nil, MarkRepliedInput{ChatID: 999})
	if out.Success || !strings.Contains(out.Error, "not found") {
		t.Errorf("Expected not found, got %+v", out)
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{0: 20, -1: 20, 5: 5, 200: 200, 1000: 200}
	for in, want := range tests {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

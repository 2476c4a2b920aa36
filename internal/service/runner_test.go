package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
)

func TestRunner_RepeatsUntilCancelled(t *testing.T) {
	source := &mockSource{dialogs: []domain.Dialog{{ID: 1, UnreadCount: 1}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reports []*domain.RunReport
	runner := NewRunner(newTestPipeline(source, &stubChatRepo{}), 5*time.Millisecond).
		OnReport(func(r *domain.RunReport) {
			reports = append(reports, r)
			if len(reports) == 3 {
				cancel()
			}
		})

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Runner did not stop")
	}

	if len(reports) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(reports))
	}
	if reports[0] == reports[1] {
		t.Error("Expected each run to have its own report")
	}
}

func TestRunner_StopsOnUnauthorized(t *testing.T) {
	source := &mockSource{dialogErr: domain.ErrNotAuthorized}
	runner := NewRunner(newTestPipeline(source, &stubChatRepo{}), time.Hour)

	err := runner.Run(context.Background())
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized, got %v", err)
	}
}

func TestRunner_ContinuesAfterFailedRun(t *testing.T) {
	source := &mockSource{dialogErr: errors.New("timeout")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := NewRunner(newTestPipeline(source, &stubChatRepo{}), 5*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for source.Runs() < 3 {
		select {
		case <-deadline:
			t.Fatal("Runner did not retry")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

package repo

import (
	"context"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
)

// TranscriptSink stores the raw per-chat snapshot, rewritten in full each run
type TranscriptSink interface {
	WriteTranscript(ctx context.Context, t *domain.Transcript) error
}

// RecordSink receives the run's export batch
type RecordSink interface {
	Export(ctx context.Context, records []domain.ExportRecord) error
}

// Notifier delivers a run report
type Notifier interface {
	Notify(ctx context.Context, report *domain.RunReport) error
}

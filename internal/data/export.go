package data

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// csvRecordSink writes the batch as a delimited file with a header row
type csvRecordSink struct {
	path string
}

// NewCSVRecordSink creates a CSV export sink
func NewCSVRecordSink(path string) repo.RecordSink {
	return &csvRecordSink{path: path}
}

// Export replaces the file. An empty batch writes nothing.
func (s *csvRecordSink) Export(ctx context.Context, records []domain.ExportRecord) error {
	log := logger.Component("export")
	if len(records) == 0 {
		log.Warn().Str("file", s.path).Msg("No data to export")
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(domain.ExportColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range records {
		if err := w.Write(records[i].Row()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}

	log.Info().Int("records", len(records)).Str("file", s.path).Msg("Exported records")
	return f.Close()
}

// Publisher publishes one message body
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// queueRecordSink publishes each record as a JSON message
type queueRecordSink struct {
	publisher Publisher
}

// NewQueueRecordSink creates a publishing sink
func NewQueueRecordSink(publisher Publisher) repo.RecordSink {
	return &queueRecordSink{publisher: publisher}
}

// Export publishes every record and stops at the first failure
func (s *queueRecordSink) Export(ctx context.Context, records []domain.ExportRecord) error {
	for i := range records {
		body, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", records[i].ChatID, err)
		}
		if err := s.publisher.Publish(ctx, body); err != nil {
			return fmt.Errorf("publish record %d: %w", records[i].ChatID, err)
		}
	}
	logger.Component("export").Debug().Int("records", len(records)).Msg("Published records")
	return nil
}

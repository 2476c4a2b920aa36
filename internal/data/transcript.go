package data

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

const transcriptKeyPrefix = "transcripts/"

var nonWordChars = regexp.MustCompile(`[^\p{L}\p{N}_]`)

// TranscriptFileName returns "<chat_id>_<name>.txt" with non-word characters of name replaced by "_"
func TranscriptFileName(chatID int64, name string) string {
	return fmt.Sprintf("%d_%s.txt", chatID, nonWordChars.ReplaceAllString(name, "_"))
}

// RenderTranscript renders the header line followed by one line per message, in window order
func RenderTranscript(t *domain.Transcript) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Unread: %d, Urgency: %d\n\n", t.UnreadCount, t.UrgencyScore)
	for i := range t.Messages {
		msg := &t.Messages[i]
		sender := "Unknown"
		if msg.SenderID != 0 {
			sender = strconv.FormatInt(msg.SenderID, 10)
		}
		fmt.Fprintf(&buf, "[%s] %s: %s\n", msg.Date.Format("2006-01-02 15:04:05"), sender, msg.DisplayText())
	}
	return buf.Bytes()
}

// fileTranscriptSink writes transcripts into a directory
type fileTranscriptSink struct {
	dir string
}

// NewFileTranscriptSink creates the directory if needed
func NewFileTranscriptSink(dir string) (repo.TranscriptSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &fileTranscriptSink{dir: dir}, nil
}

// WriteTranscript replaces the chat's transcript file
func (s *fileTranscriptSink) WriteTranscript(ctx context.Context, t *domain.Transcript) error {
	path := filepath.Join(s.dir, TranscriptFileName(t.ChatID, t.Name))
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, RenderTranscript(t), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace transcript: %w", err)
	}
	return nil
}

// ObjectUploader stores an object under a key
type ObjectUploader interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// s3TranscriptSink mirrors transcripts to object storage
type s3TranscriptSink struct {
	uploader ObjectUploader
}

// NewS3TranscriptSink creates a transcript mirror
func NewS3TranscriptSink(uploader ObjectUploader) repo.TranscriptSink {
	return &s3TranscriptSink{uploader: uploader}
}

// WriteTranscript uploads the transcript under transcripts/<file name>
func (s *s3TranscriptSink) WriteTranscript(ctx context.Context, t *domain.Transcript) error {
	key := transcriptKeyPrefix + TranscriptFileName(t.ChatID, t.Name)
	return s.uploader.Put(ctx, key, RenderTranscript(t), "text/plain; charset=utf-8")
}

// teeTranscriptSink writes to a primary sink and best-effort mirrors
type teeTranscriptSink struct {
	primary repo.TranscriptSink
	mirrors []repo.TranscriptSink
}

// NewTeeTranscriptSink returns primary when there are no mirrors.
// Only a primary failure is returned; mirror failures are logged.
func NewTeeTranscriptSink(primary repo.TranscriptSink, mirrors ...repo.TranscriptSink) repo.TranscriptSink {
	if len(mirrors) == 0 {
		return primary
	}
	return &teeTranscriptSink{primary: primary, mirrors: mirrors}
}

func (s *teeTranscriptSink) WriteTranscript(ctx context.Context, t *domain.Transcript) error {
	if err := s.primary.WriteTranscript(ctx, t); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		if err := m.WriteTranscript(ctx, t); err != nil {
			logger.Component("transcript").Warn().Err(err).Int64("chat_id", t.ChatID).Msg("Transcript mirror failed")
		}
	}
	return nil
}

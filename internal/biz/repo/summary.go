package repo

import (
	"context"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
)

// Summarizer produces a natural-language digest of a message window
type Summarizer interface {
	Summarize(ctx context.Context, messages []domain.Message, services []string) (string, error)
}

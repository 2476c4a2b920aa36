package repo

import (
	"context"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
)

// ChatRepo is the durable store of chat rollups and opportunities (SQLite)
type ChatRepo interface {
	// LastReplyDate returns the stored last reply time, zero when absent or unparsable
	LastReplyDate(ctx context.Context, chatID int64) (time.Time, error)

	// SaveDialog upserts the rollup's derived fields and inserts-or-ignores the
	// opportunities in one transaction. LastReplyDate on the stored row is preserved.
	SaveDialog(ctx context.Context, chat *domain.Chat, opportunities []domain.Opportunity) error

	// GetChat returns a rollup, nil when not found
	GetChat(ctx context.Context, chatID int64) (*domain.Chat, error)

	// ListFollowups lists chats needing a reply, most urgent first
	ListFollowups(ctx context.Context, limit int) ([]*domain.Chat, error)

	// ListOpportunities lists opportunities newest first, filtered by chat (0 = all) and service ("" = all)
	ListOpportunities(ctx context.Context, chatID int64, service string, limit int) ([]*domain.Opportunity, error)

	// SetLastReplyDate records the user's own last reply
	SetLastReplyDate(ctx context.Context, chatID int64, t time.Time) error

	Close() error
}

package repo

import (
	"context"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
)

// DialogSource enumerates dialogs and pages their message history.
//
// History returns up to limit messages older than offsetID (0 = from the latest),
// newest first. Callers rely on that order: the first element of the first page is
// the dialog's latest message. A *domain.RateLimitError signals the caller must wait.
type DialogSource interface {
	Dialogs(ctx context.Context) ([]domain.Dialog, error)
	History(ctx context.Context, dialog domain.Dialog, offsetID, limit int) ([]domain.Message, error)
}

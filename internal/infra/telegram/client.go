package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// Client wraps an MTProto client backed by a file session.
// The session must already be authorized; no interactive login is performed.
type Client struct {
	client *telegram.Client
}

// NewClient creates a new Telegram client
func NewClient(appID int, appHash, sessionFile string) *Client {
	return &Client{
		client: telegram.NewClient(appID, appHash, telegram.Options{
			SessionStorage: &session.FileStorage{Path: sessionFile},
		}),
	}
}

// Run connects, checks authorization and calls fn with the raw API and the
// authorized account's user. The connection is closed when fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context, api *tg.Client, self *tg.User) error) error {
	log := logger.Component("telegram")

	err := c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return domain.ErrNotAuthorized
		}
		event := log.Info()
		if status.User != nil {
			event = event.Int64("user_id", status.User.ID)
		}
		event.Msg("Connected")
		return fn(ctx, c.client.API(), status.User)
	})
	log.Info().Msg("Disconnected")
	return err
}

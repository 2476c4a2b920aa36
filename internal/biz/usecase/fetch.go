package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// FetchConfig bounds history retrieval for one dialog
type FetchConfig struct {
	Limit      int           // message window per dialog
	PageSize   int           // messages requested per page
	MaxRetries int           // rate-limit retries per dialog
	BaseWait   time.Duration // used when the source suggests no wait
	MaxWait    time.Duration // cap on a single suggested wait
}

// DefaultFetchConfig is the default retrieval policy
var DefaultFetchConfig = FetchConfig{
	Limit:      100,
	PageSize:   100,
	MaxRetries: 3,
	BaseWait:   5 * time.Second,
	MaxWait:    30 * time.Second,
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// FetchResult is what was collected for one dialog. Retrieval never fails the dialog:
// Err records why it stopped early, Exhausted that the retry ceiling was hit.
type FetchResult struct {
	Messages  []domain.Message // newest first
	Retries   int
	Exhausted bool
	Err       error
}

// HistoryFetcher pages a dialog's history, absorbing rate-limit signals with bounded
// exponential backoff. Any other source error stops retrieval for the dialog.
type HistoryFetcher struct {
	source repo.DialogSource
	config FetchConfig
	sleep  SleepFunc
}

// NewHistoryFetcher creates a fetcher
func NewHistoryFetcher(source repo.DialogSource, config FetchConfig) *HistoryFetcher {
	if config.PageSize <= 0 || config.PageSize > config.Limit {
		config.PageSize = config.Limit
	}
	return &HistoryFetcher{
		source: source,
		config: config,
		sleep:  domain.Sleep,
	}
}

// WithSleep replaces the sleeper (used by tests)
func (f *HistoryFetcher) WithSleep(sleep SleepFunc) *HistoryFetcher {
	f.sleep = sleep
	return f
}

// Fetch retrieves up to config.Limit messages for dialog
func (f *HistoryFetcher) Fetch(ctx context.Context, dialog domain.Dialog) FetchResult {
	log := logger.Component("fetch").With().Int64("chat_id", dialog.ID).Str("chat", dialog.DisplayName()).Logger()

	var result FetchResult
	offsetID := 0

	for len(result.Messages) < f.config.Limit {
		want := f.config.PageSize
		if remaining := f.config.Limit - len(result.Messages); remaining < want {
			want = remaining
		}

		log.Debug().Int("offset_id", offsetID).Int("limit", want).Msg("Fetching page")
		page, err := f.source.History(ctx, dialog, offsetID, want)
		if err != nil {
			var rl *domain.RateLimitError
			if !errors.As(err, &rl) {
				log.Error().Err(err).Int("collected", len(result.Messages)).Msg("Error fetching messages")
				result.Err = err
				break
			}

			if result.Retries >= f.config.MaxRetries {
				log.Warn().Int("retries", result.Retries).Int("collected", len(result.Messages)).Msg("Rate-limit retries exhausted")
				result.Exhausted = true
				result.Err = err
				break
			}

			result.Retries++
			wait := f.Backoff(rl.Wait, result.Retries)
			log.Info().Dur("wait", wait).Int("attempt", result.Retries).Msg("Flood wait")
			if err := f.sleep(ctx, wait); err != nil {
				result.Err = err
				break
			}
			continue
		}

		result.Messages = append(result.Messages, page...)
		if len(page) < want {
			break
		}
		offsetID = page[len(page)-1].ID
	}

	log.Info().Int("fetched", len(result.Messages)).Msg("Fetched messages")
	return result
}

// MaxBackoff bounds any single wait, whatever the retry count
const MaxBackoff = time.Hour

// Backoff returns the wait before the retry-th retry: min(suggested, MaxWait) * 2^(retry-1),
// saturating at MaxBackoff
func (f *HistoryFetcher) Backoff(suggested time.Duration, retry int) time.Duration {
	wait := suggested
	if wait <= 0 {
		wait = f.config.BaseWait
	}
	if f.config.MaxWait > 0 && wait > f.config.MaxWait {
		wait = f.config.MaxWait
	}
	for i := 1; i < retry; i++ {
		if wait >= MaxBackoff/2 {
			return MaxBackoff
		}
		wait *= 2
	}
	if wait > MaxBackoff {
		return MaxBackoff
	}
	return wait
}

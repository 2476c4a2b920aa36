package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/logger"

	_ "modernc.org/sqlite"
)

// storedTimeLayout is the layout written to DATETIME columns
const storedTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// layouts accepted when reading DATETIME columns, including values written by other tools
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	storedTimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

const (
	txMaxAttempts = 3
	busyTimeoutMS = 5000
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	chat_id INTEGER PRIMARY KEY,
	name TEXT,
	is_group BOOLEAN,
	last_message_date DATETIME,
	urgency_score INTEGER,
	needs_followup BOOLEAN,
	last_reply_date DATETIME
);
CREATE TABLE IF NOT EXISTS opportunities (
	chat_id INTEGER,
	message_id INTEGER,
	service TEXT,
	timestamp DATETIME,
	PRIMARY KEY (chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_chats_followup ON chats(needs_followup, urgency_score);
`

// chatStore implements the Chat repository on sqlite
type chatStore struct {
	db *sqlx.DB
}

type chatRow struct {
	ChatID          int64          `db:"chat_id"`
	Name            sql.NullString `db:"name"`
	IsGroup         sql.NullBool   `db:"is_group"`
	LastMessageDate sql.NullString `db:"last_message_date"`
	UrgencyScore    sql.NullInt64  `db:"urgency_score"`
	NeedsFollowup   sql.NullBool   `db:"needs_followup"`
	LastReplyDate   sql.NullString `db:"last_reply_date"`
}

type opportunityRow struct {
	ChatID    int64          `db:"chat_id"`
	MessageID int            `db:"message_id"`
	Service   sql.NullString `db:"service"`
	Timestamp sql.NullString `db:"timestamp"`
}

const chatColumns = `chat_id, name, is_group, last_message_date, urgency_score, needs_followup, last_reply_date`

// NewChatStore opens (or creates) the sqlite store at dbPath
func NewChatStore(dbPath string) (repo.ChatRepo, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dbPath, busyTimeoutMS)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &chatStore{db: db}, nil
}

// LastReplyDate returns the stored reply time, or zero when absent or unparsable
func (s *chatStore) LastReplyDate(ctx context.Context, chatID int64) (time.Time, error) {
	var raw sql.NullString
	err := s.db.GetContext(ctx, &raw, `SELECT last_reply_date FROM chats WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last reply date: %w", err)
	}
	return s.parseStored(chatID, "last_reply_date", raw), nil
}

// SaveDialog upserts the pipeline-owned chat fields and inserts opportunities in one transaction.
// last_reply_date is never touched here. Duplicate (chat_id, message_id) opportunities are ignored.
func (s *chatStore) SaveDialog(ctx context.Context, chat *domain.Chat, opportunities []domain.Opportunity) error {
	return s.runTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chats (chat_id, name, is_group, last_message_date, urgency_score, needs_followup)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(chat_id) DO UPDATE SET
				name = excluded.name,
				is_group = excluded.is_group,
				last_message_date = excluded.last_message_date,
				urgency_score = excluded.urgency_score,
				needs_followup = excluded.needs_followup
		`,
			chat.ChatID,
			chat.Name,
			chat.IsGroup,
			formatStored(chat.LastMessageDate),
			chat.UrgencyScore,
			chat.NeedsFollowup,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chat: %w", err)
		}

		for _, opp := range opportunities {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO opportunities (chat_id, message_id, service, timestamp)
				VALUES (?, ?, ?, ?)
			`, opp.ChatID, opp.MessageID, opp.Service, formatStored(opp.Timestamp))
			if err != nil {
				return fmt.Errorf("failed to insert opportunity: %w", err)
			}
		}
		return nil
	})
}

// GetChat returns the stored rollup, or nil when the chat is unknown
func (s *chatStore) GetChat(ctx context.Context, chatID int64) (*domain.Chat, error) {
	var row chatRow
	err := s.db.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat: %w", err)
	}
	return s.toChat(&row), nil
}

// ListFollowups returns chats needing a reply, most urgent first
func (s *chatStore) ListFollowups(ctx context.Context, limit int) ([]*domain.Chat, error) {
	var rows []chatRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+chatColumns+` FROM chats
		WHERE needs_followup = 1
		ORDER BY urgency_score DESC, last_message_date DESC, chat_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list followups: %w", err)
	}

	chats := make([]*domain.Chat, 0, len(rows))
	for i := range rows {
		chats = append(chats, s.toChat(&rows[i]))
	}
	return chats, nil
}

// ListOpportunities returns opportunities newest first. A zero chatID or empty service matches all.
func (s *chatStore) ListOpportunities(ctx context.Context, chatID int64, service string, limit int) ([]*domain.Opportunity, error) {
	var where []string
	var args []any
	if chatID != 0 {
		where = append(where, "chat_id = ?")
		args = append(args, chatID)
	}
	if service != "" {
		where = append(where, "service = ?")
		args = append(args, service)
	}

	query := `SELECT chat_id, message_id, service, timestamp FROM opportunities`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC, message_id DESC LIMIT ?`
	args = append(args, limit)

	var rows []opportunityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}

	opps := make([]*domain.Opportunity, 0, len(rows))
	for _, row := range rows {
		opps = append(opps, &domain.Opportunity{
			ChatID:    row.ChatID,
			MessageID: row.MessageID,
			Service:   row.Service.String,
			Timestamp: s.parseStored(row.ChatID, "timestamp", row.Timestamp),
		})
	}
	return opps, nil
}

// SetLastReplyDate records the user's own reply. It is the only writer of last_reply_date.
func (s *chatStore) SetLastReplyDate(ctx context.Context, chatID int64, t time.Time) error {
	return s.runTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE chats SET last_reply_date = ? WHERE chat_id = ?`, formatStored(t), chatID)
		if err != nil {
			return fmt.Errorf("failed to update last reply date: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update last reply date: %w", err)
		}
		if n == 0 {
			return domain.ErrChatNotFound
		}
		return nil
	})
}

// Close closes the database
func (s *chatStore) Close() error {
	return s.db.Close()
}

// runTx executes fn inside a transaction, retrying when sqlite reports it is busy
func (s *chatStore) runTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = s.runTxOnce(ctx, fn)
		if err == nil || !isBusy(err) || attempt == txMaxAttempts {
			return err
		}
		logger.Component("store").Warn().Err(err).Int("attempt", attempt).Msg("Database busy, retrying")
		if err := domain.Sleep(ctx, time.Duration(100*attempt)*time.Millisecond); err != nil {
			return err
		}
	}
	return err
}

func (s *chatStore) runTxOnce(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *chatStore) toChat(row *chatRow) *domain.Chat {
	return &domain.Chat{
		ChatID:          row.ChatID,
		Name:            row.Name.String,
		IsGroup:         row.IsGroup.Bool,
		LastMessageDate: s.parseStored(row.ChatID, "last_message_date", row.LastMessageDate),
		UrgencyScore:    int(row.UrgencyScore.Int64),
		NeedsFollowup:   row.NeedsFollowup.Bool,
		LastReplyDate:   s.parseStored(row.ChatID, "last_reply_date", row.LastReplyDate),
	}
}

// parseStored returns zero for NULL, empty or unparsable values; the latter is logged
func (s *chatStore) parseStored(chatID int64, column string, raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	t, ok := parseStoredTime(raw.String)
	if !ok {
		logger.Component("store").Warn().
			Int64("chat_id", chatID).
			Str("column", column).
			Str("value", raw.String).
			Msg("Unparsable timestamp, treating as absent")
	}
	return t
}

func parseStoredTime(s string) (time.Time, bool) {
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatStored(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(storedTimeLayout)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

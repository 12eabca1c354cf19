// Package memory keeps the per-session conversation log.
//
// The log is append-only. Context trimming is a read-time projection (see
// Project) and clearing a conversation appends a reset marker instead of
// deleting rows.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/pilobster/pilobster/internal/logger"
)

// Role of a turn's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TagScheduled marks assistant turns produced by a job fire.
const TagScheduled = "scheduled"

const tagReset = "reset"

// Turn is one entry of a session lineage's log.
type Turn struct {
	Seq       int64
	Role      Role
	Content   string
	Tag       string
	CreatedAt time.Time
}

// Budget bounds the turns handed to the model. Zero fields are unlimited.
type Budget struct {
	MaxTurns int
	MaxChars int
}

// Memory stores turns keyed by session lineage ("telegram:42", "terminal:0").
type Memory struct {
	db     *sql.DB
	logger *logger.Logger
	now    func() time.Time
}

// New wraps an opened database (see storage.Open).
func New(db *sql.DB, log *logger.Logger) *Memory {
	return &Memory{db: db, logger: log, now: time.Now}
}

// Append adds a turn at the end of key's log. Sequence numbers are assigned
// inside the insert statement, so concurrent appends to one key never collide.
func (m *Memory) Append(ctx context.Context, key string, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = m.now()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO conversations (session_key, seq, role, content, tag, created_at)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM conversations WHERE session_key = ?), 0) + 1, ?, ?, ?, ?)`,
		key, key, string(turn.Role), turn.Content, turn.Tag, turn.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Reset starts a fresh conversation for key. Earlier turns stay in the log.
func (m *Memory) Reset(ctx context.Context, key string) error {
	if err := m.Append(ctx, key, Turn{Role: RoleSystem, Tag: tagReset}); err != nil {
		return err
	}
	m.logger.InfoCtx(ctx, "conversation reset", logger.Field{Key: "session", Value: key})
	return nil
}

// History returns turns since the latest reset, oldest first. limit <= 0
// returns all of them.
func (m *Memory) History(ctx context.Context, key string, limit int) ([]Turn, error) {
	query := `
		SELECT seq, role, content, tag, created_at
		FROM conversations
		WHERE session_key = ? AND tag != ?
		  AND seq > COALESCE((SELECT MAX(seq) FROM conversations WHERE session_key = ? AND tag = ?), 0)
		ORDER BY seq DESC`
	args := []any{key, tagReset, key, tagReset}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	turns, err := m.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	slices.Reverse(turns)
	return turns, nil
}

// Log returns every stored turn for key, reset markers included.
func (m *Memory) Log(ctx context.Context, key string) ([]Turn, error) {
	return m.query(ctx, `
		SELECT seq, role, content, tag, created_at
		FROM conversations
		WHERE session_key = ?
		ORDER BY seq ASC`, key)
}

// Window returns the recent history that fits budget.
func (m *Memory) Window(ctx context.Context, key string, budget Budget) ([]Turn, error) {
	turns, err := m.History(ctx, key, budget.MaxTurns)
	if err != nil {
		return nil, err
	}
	return Project(turns, budget), nil
}

// Count returns the number of turns since the latest reset.
func (m *Memory) Count(ctx context.Context, key string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE session_key = ? AND tag != ?
		  AND seq > COALESCE((SELECT MAX(seq) FROM conversations WHERE session_key = ? AND tag = ?), 0)`,
		key, tagReset, key, tagReset).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return n, nil
}

// Project drops the oldest turns until the rest fit budget. The newest turn
// is always kept.
func Project(turns []Turn, budget Budget) []Turn {
	start := 0
	if budget.MaxTurns > 0 && len(turns) > budget.MaxTurns {
		start = len(turns) - budget.MaxTurns
	}

	if budget.MaxChars > 0 {
		total := 0
		for i := start; i < len(turns); i++ {
			total += len(turns[i].Content)
		}
		for total > budget.MaxChars && start < len(turns)-1 {
			total -= len(turns[start].Content)
			start++
		}
	}

	return turns[start:]
}

func (m *Memory) query(ctx context.Context, query string, args ...any) ([]Turn, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []Turn
	for rows.Next() {
		var (
			turn    Turn
			role    string
			created int64
		)
		if err := rows.Scan(&turn.Seq, &role, &turn.Content, &turn.Tag, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = Role(role)
		turn.CreatedAt = time.Unix(created, 0).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return turns, nil
}

// Package transcripts stores archived chat turns.
package transcripts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Turn is one archived transcript entry. Seq orders turns archived in the same batch.
type Turn struct {
	Seq     int       `json:"seq"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

// InsertTurns writes a batch in one transaction. Re-inserting the same batch is a no-op.
func (s *Repository) InsertTurns(ctx context.Context, sessionID string, turns []Turn) error {
	batch := &pgx.Batch{}
	for _, t := range turns {
		batch.Queue(`INSERT INTO chat_turns (session_id, seq, role, content, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (session_id, seq, created_at) DO NOTHING`,
			sessionID, t.Seq, t.Role, t.Content, t.At,
		)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chat turns: %w", err)
	}
	return tx.Commit(ctx)
}

// ListTurns returns the archived turns of a session, oldest first.
func (s *Repository) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.DB.Query(ctx, `SELECT seq, role, content, created_at FROM chat_turns
	WHERE session_id=$1 ORDER BY created_at, seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chat turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Seq, &t.Role, &t.Content, &t.At); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

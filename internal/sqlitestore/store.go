// Package sqlitestore is a single-file implementation of the poll and response repositories,
// used for local runs of the chat REPL and in tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/voters"
)

//go:embed schema.sql
var embeddedSchema embed.FS

const pollColumns = `id, question, option1, option2, option3, option4, description, media_url, media_kind, is_active, created_at`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return err
	}

	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, strings.TrimSpace(string(b)))
	return err
}

// ---------- Polls ----------

func (s *Store) InsertPoll(ctx context.Context, d polls.Draft) (polls.Poll, error) {
	p := polls.Poll{
		ID:          uuid.NewString(),
		Question:    d.Question,
		Option1:     d.Options[0],
		Option2:     d.Options[1],
		Option3:     d.Options[2],
		Option4:     d.Options[3],
		Description: d.Description,
		MediaURL:    d.MediaURL,
		MediaKind:   d.MediaKind,
		Active:      true,
		CreatedAt:   s.now(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO polls(`+pollColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Question, p.Option1, p.Option2, p.Option3, p.Option4, p.Description, p.MediaURL, string(p.MediaKind), p.Active, p.CreatedAt)
	if err != nil {
		return polls.Poll{}, fmt.Errorf("insert poll: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePoll(ctx context.Context, id string, patch polls.Patch) (polls.Poll, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return polls.Poll{}, err
	}
	defer tx.Rollback()

	current, err := scanPoll(tx.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
	if err != nil {
		return polls.Poll{}, err
	}
	next := patch.Apply(current)
	_, err = tx.ExecContext(ctx, `UPDATE polls SET question = ?, option1 = ?, option2 = ?, option3 = ?, option4 = ?, is_active = ? WHERE id = ?`,
		next.Question, next.Option1, next.Option2, next.Option3, next.Option4, next.Active, id)
	if err != nil {
		return polls.Poll{}, fmt.Errorf("update poll %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return polls.Poll{}, err
	}
	return next, nil
}

func (s *Store) SetPollActive(ctx context.Context, id string, active bool) (string, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE polls SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return "", err
	}
	// SQLite reports rows matched, so an unchanged flag still counts.
	affected, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return "", polls.ErrNotFound
	}
	return id, nil
}

func (s *Store) DeactivateAllPolls(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE polls SET is_active = 0 WHERE is_active = 1`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetPoll(ctx context.Context, id string) (polls.Poll, error) {
	return scanPoll(s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
}

func (s *Store) ListActivePolls(ctx context.Context) ([]polls.Poll, error) {
	return s.queryPolls(ctx, `SELECT `+pollColumns+` FROM polls WHERE is_active = 1 ORDER BY created_at DESC, rowid DESC`)
}

// FindPollsByQuestion filters in Go: SQLite's LIKE only folds ASCII case.
func (s *Store) FindPollsByQuestion(ctx context.Context, fragment string, activeOnly bool) ([]polls.Poll, error) {
	q := `SELECT ` + pollColumns + ` FROM polls`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	all, err := s.queryPolls(ctx, q+` ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(p polls.Poll, _ int) bool {
		return polls.MatchesQuestion(p.Question, fragment)
	}), nil
}

func (s *Store) queryPolls(ctx context.Context, q string, args ...any) ([]polls.Poll, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []polls.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPoll(row scanner) (polls.Poll, error) {
	var (
		p    polls.Poll
		kind string
	)
	err := row.Scan(&p.ID, &p.Question, &p.Option1, &p.Option2, &p.Option3, &p.Option4,
		&p.Description, &p.MediaURL, &kind, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return polls.Poll{}, polls.ErrNotFound
	}
	if err != nil {
		return polls.Poll{}, err
	}
	p.MediaKind = polls.MediaKind(kind)
	return p, nil
}

// ---------- Responses ----------

func (s *Store) InsertResponse(ctx context.Context, pollID, voterID string, slot int) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO responses(poll_id, voter_id, selected_option, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(poll_id, voter_id) DO NOTHING
`, pollID, voterID, slot, s.now())
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return voters.ErrAlreadyVoted
	}
	return nil
}

func (s *Store) HasVoted(ctx context.Context, pollID, voterID string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM responses WHERE poll_id = ? AND voter_id = ?`, pollID, voterID).Scan(&cnt)
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *Store) ListResponses(ctx context.Context, pollID string) ([]voters.Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT poll_id, voter_id, selected_option, created_at FROM responses WHERE poll_id = ? ORDER BY created_at`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rs []voters.Response
	for rows.Next() {
		var r voters.Response
		if err := rows.Scan(&r.PollID, &r.VoterID, &r.Slot, &r.CreatedAt); err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

package voters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyVoted is returned when (poll, voter) already has a response.
var ErrAlreadyVoted = errors.New("already voted")

// Response is one voter's selection on one poll.
type Response struct {
	PollID    string
	VoterID   string
	Slot      int
	CreatedAt time.Time
}

// Repository stores responses in Postgres. The (poll_id, voter_id) primary key is the
// at-most-one-vote guarantee.
type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

func (s *Repository) InsertResponse(ctx context.Context, pollID, voterID string, slot int) error {
	tag, err := s.DB.Exec(ctx, `INSERT INTO responses (poll_id, voter_id, selected_option, created_at)
	VALUES ($1,$2,$3,NOW())
	ON CONFLICT (poll_id, voter_id) DO NOTHING`,
		pollID, voterID, slot,
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyVoted
	}
	return nil
}

func (s *Repository) HasVoted(ctx context.Context, pollID, voterID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM responses WHERE poll_id=$1 AND voter_id=$2)`, pollID, voterID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check response: %w", err)
	}
	return exists, nil
}

func (s *Repository) ListResponses(ctx context.Context, pollID string) ([]Response, error) {
	rows, err := s.DB.Query(ctx, `SELECT poll_id, voter_id, selected_option, created_at FROM responses WHERE poll_id=$1 ORDER BY created_at`, pollID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	var rs []Response
	for rows.Next() {
		var r Response
		if err := rows.Scan(&r.PollID, &r.VoterID, &r.Slot, &r.CreatedAt); err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

// Slots extracts the selected slot of each response.
func Slots(rs []Response) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Slot
	}
	return out
}

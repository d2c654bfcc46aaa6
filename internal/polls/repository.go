package polls

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pollColumns = `id, question, option1, option2, option3, option4, description, media_url, media_kind, is_active, created_at`

// Repository stores polls in Postgres.
type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

func (s *Repository) InsertPoll(ctx context.Context, d Draft) (Poll, error) {
	row := s.DB.QueryRow(ctx, `INSERT INTO polls (
		id, question, option1, option2, option3, option4, description, media_url, media_kind, is_active, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE,NOW())
	RETURNING `+pollColumns,
		uuid.NewString(), d.Question, d.Options[0], d.Options[1], d.Options[2], d.Options[3],
		d.Description, d.MediaURL, string(d.MediaKind),
	)
	p, err := scanPoll(row)
	if err != nil {
		return Poll{}, fmt.Errorf("insert poll: %w", err)
	}
	return p, nil
}

func (s *Repository) UpdatePoll(ctx context.Context, id string, patch Patch) (Poll, error) {
	patch = patch.Trimmed()
	row := s.DB.QueryRow(ctx, `UPDATE polls SET
		question  = COALESCE($2::text, question),
		option1   = COALESCE($3::text, option1),
		option2   = COALESCE($4::text, option2),
		option3   = COALESCE($5::text, option3),
		option4   = COALESCE($6::text, option4),
		is_active = COALESCE($7::boolean, is_active)
	WHERE id = $1
	RETURNING `+pollColumns,
		id, patch.Question, patch.Options[0], patch.Options[1], patch.Options[2], patch.Options[3], patch.Active,
	)
	p, err := scanPoll(row)
	if err != nil {
		return Poll{}, fmt.Errorf("update poll %s: %w", id, err)
	}
	return p, nil
}

func (s *Repository) SetPollActive(ctx context.Context, id string, active bool) (string, error) {
	tag, err := s.DB.Exec(ctx, `UPDATE polls SET is_active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return "", fmt.Errorf("set poll %s active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *Repository) DeactivateAllPolls(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx, `UPDATE polls SET is_active=FALSE WHERE is_active`)
	if err != nil {
		return 0, fmt.Errorf("deactivate polls: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Repository) GetPoll(ctx context.Context, id string) (Poll, error) {
	p, err := scanPoll(s.DB.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id=$1`, id))
	if err != nil {
		return Poll{}, fmt.Errorf("get poll %s: %w", id, err)
	}
	return p, nil
}

func (s *Repository) ListActivePolls(ctx context.Context) ([]Poll, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+pollColumns+` FROM polls WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active polls: %w", err)
	}
	return collectPolls(rows)
}

func (s *Repository) FindPollsByQuestion(ctx context.Context, fragment string, activeOnly bool) ([]Poll, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+pollColumns+` FROM polls
	WHERE question ILIKE $1 AND (is_active OR NOT $2)
	ORDER BY created_at DESC`, likePattern(fragment), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("find polls by question: %w", err)
	}
	return collectPolls(rows)
}

func collectPolls(rows pgx.Rows) ([]Poll, error) {
	defer rows.Close()
	var res []Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func scanPoll(row pgx.Row) (Poll, error) {
	var (
		p    Poll
		kind string
	)
	err := row.Scan(&p.ID, &p.Question, &p.Option1, &p.Option2, &p.Option3, &p.Option4,
		&p.Description, &p.MediaURL, &kind, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Poll{}, ErrNotFound
	}
	if err != nil {
		return Poll{}, err
	}
	p.MediaKind = MediaKind(kind)
	return p, nil
}

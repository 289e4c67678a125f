package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kozi/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

type progressRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	CourseID       string         `db:"course_id"`
	ViewedLessons  pq.StringArray `db:"viewed_lessons"`
	Percentage     int            `db:"percentage"`
	Completed      bool           `db:"completed"`
	CompletionDate null.Time      `db:"completion_date"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r progressRow) progress() progress.Progress {
	return progress.Progress{
		ID:             r.ID,
		UserID:         r.UserID,
		CourseID:       r.CourseID,
		ViewedLessons:  r.ViewedLessons,
		Percentage:     r.Percentage,
		Completed:      r.Completed,
		CompletionDate: r.CompletionDate,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const progressColumns = `id, user_id, course_id, viewed_lessons, percentage, completed, completion_date, created_at, updated_at`

func (repo *progressRepository) GetProgress(ctx context.Context, userID, courseID string) (progress.Progress, error) {
	var row progressRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+progressColumns+` FROM progress WHERE user_id = $1 AND course_id = $2`,
		userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return progress.Progress{}, progress.ErrNoProgress
		}
		return progress.Progress{}, errors.Wrap(err, "getting progress")
	}
	return row.progress(), nil
}

// UpdateProgress applies the mutation under a row lock (SELECT ... FOR UPDATE)
// so concurrent viewed marks for the same pair serialize instead of dropping
// each other's set-adds.
func (repo *progressRepository) UpdateProgress(ctx context.Context, userID, courseID string, create bool, apply func(p *progress.Progress) error) (progress.Progress, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "beginning progress tx")
	}
	defer func() { _ = tx.Rollback() }()

	if create {
		now := time.Now().UTC()
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO progress (id, user_id, course_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (user_id, course_id) DO NOTHING`,
			uuid.New().String(), userID, courseID, now,
		); err != nil {
			return progress.Progress{}, errors.Wrap(err, "inserting progress")
		}
	}

	var row progressRow
	err = tx.GetContext(ctx, &row,
		`SELECT `+progressColumns+` FROM progress WHERE user_id = $1 AND course_id = $2 FOR UPDATE`,
		userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return progress.Progress{}, progress.ErrNoProgress
		}
		return progress.Progress{}, errors.Wrap(err, "locking progress")
	}

	prog := row.progress()
	if err = apply(&prog); err != nil {
		return progress.Progress{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE progress
		SET viewed_lessons = $3, percentage = $4, completed = $5, completion_date = $6, updated_at = $7
		WHERE user_id = $1 AND course_id = $2`,
		userID, courseID,
		pq.StringArray(prog.ViewedLessons), prog.Percentage, prog.Completed, prog.CompletionDate, prog.UpdatedAt,
	); err != nil {
		return progress.Progress{}, errors.Wrap(err, "updating progress")
	}

	if err = tx.Commit(); err != nil {
		return progress.Progress{}, errors.Wrap(err, "committing progress tx")
	}
	return prog, nil
}

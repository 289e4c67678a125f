package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kozi/core/enrollment"
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

type enrollmentRow struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	CourseID      string      `db:"course_id"`
	Status        string      `db:"status"`
	Origin        string      `db:"origin"`
	ProviderTxRef null.String `db:"provider_tx_ref"`
	GrantedAt     null.Time   `db:"granted_at"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r enrollmentRow) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:            r.ID,
		UserID:        r.UserID,
		CourseID:      r.CourseID,
		Status:        enrollment.Status(r.Status),
		Origin:        enrollment.Origin(r.Origin),
		ProviderTxRef: r.ProviderTxRef,
		GrantedAt:     r.GrantedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const enrollmentColumns = `id, user_id, course_id, status, origin, provider_tx_ref, granted_at, created_at, updated_at`

func (repo *enrollmentRepository) get(ctx context.Context, q sqlx.QueryerContext, userID, courseID string) (enrollment.Enrollment, error) {
	var row enrollmentRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE user_id = $1 AND course_id = $2`,
		userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	return repo.get(ctx, repo.db, userID, courseID)
}

func (repo *enrollmentRepository) CreatePendingEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO enrollment (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		enr.ID, enr.UserID, enr.CourseID, enr.Status, enr.Origin,
		enr.ProviderTxRef, enr.GrantedAt, enr.CreatedAt, enr.UpdatedAt,
	)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting pending enrollment")
	}
	// return whichever row won
	return repo.GetEnrollment(ctx, enr.UserID, enr.CourseID)
}

// GrantEnrollment relies on the (user_id, course_id) unique key: the upsert
// promotes any non-granted row and inserts when absent, but leaves an
// existing granted row untouched (no row comes back and the caller gets the
// stored grant). Mirrors are written only on an effective grant, in the same
// transaction.
func (repo *enrollmentRepository) GrantEnrollment(ctx context.Context, enr enrollment.Enrollment, mirrors enrollment.GrantMirrors) (enrollment.Enrollment, bool, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return enrollment.Enrollment{}, false, errors.Wrap(err, "beginning grant tx")
	}
	defer func() { _ = tx.Rollback() }()

	var row enrollmentRow
	err = tx.GetContext(ctx, &row, `
		INSERT INTO enrollment (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, 'granted', $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, course_id) DO UPDATE
		SET status          = 'granted',
		    origin          = EXCLUDED.origin,
		    provider_tx_ref = EXCLUDED.provider_tx_ref,
		    granted_at      = EXCLUDED.granted_at,
		    updated_at      = EXCLUDED.updated_at
		WHERE enrollment.status <> 'granted'
		RETURNING `+enrollmentColumns,
		enr.ID, enr.UserID, enr.CourseID, enr.Origin,
		enr.ProviderTxRef, enr.GrantedAt, enr.CreatedAt, enr.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// already granted; first writer's row is the result
			stored, gerr := repo.get(ctx, tx, enr.UserID, enr.CourseID)
			if gerr != nil {
				return enrollment.Enrollment{}, false, gerr
			}
			return stored, false, errors.Wrap(tx.Commit(), "committing grant tx")
		}
		return enrollment.Enrollment{}, false, errors.Wrap(err, "upserting grant")
	}

	sc := mirrors.StudentCourse
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO student_course (user_id, course_id, title, teacher_id, image_url, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		sc.UserID, sc.CourseID, sc.Title, sc.TeacherID, sc.ImageURL, sc.PurchasedAt,
	); err != nil {
		return enrollment.Enrollment{}, false, errors.Wrap(err, "writing student_course mirror")
	}

	ord := mirrors.Order
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, course_id, course_title, price_cents, provider_tx_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ord.ID, ord.UserID, ord.CourseID, ord.CourseTitle, ord.PriceCents, ord.ProviderTxRef, ord.Status, ord.CreatedAt,
	); err != nil {
		return enrollment.Enrollment{}, false, errors.Wrap(err, "writing order mirror")
	}

	if err = tx.Commit(); err != nil {
		return enrollment.Enrollment{}, false, errors.Wrap(err, "committing grant tx")
	}
	return row.enrollment(), true, nil
}

func (repo *enrollmentRepository) MarkEnrollmentFailed(ctx context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE enrollment SET status = 'failed', updated_at = $3
		WHERE user_id = $1 AND course_id = $2 AND status = 'pending'
		RETURNING `+enrollmentColumns,
		userID, courseID, time.Now().UTC(),
	)
	if err == nil {
		return row.enrollment(), nil
	}
	if err != sql.ErrNoRows {
		return enrollment.Enrollment{}, errors.Wrap(err, "marking enrollment failed")
	}
	// not pending: granted rows are never demoted, failed rows stay failed
	return repo.GetEnrollment(ctx, userID, courseID)
}

func (repo *enrollmentRepository) ListGrantedEnrollments(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+enrollmentColumns+` FROM enrollment
		WHERE user_id = $1 AND status = 'granted'
		ORDER BY granted_at DESC`,
		userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing granted enrollments")
	}

	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.enrollment())
	}
	return enrs, nil
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

// modulesJSON / curriculumJSON store the two content shapes as JSONB.
type (
	modulesJSON    []course.Module
	curriculumJSON []course.CurriculumItem
)

func (m modulesJSON) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]course.Module(m))
}

func (m *modulesJSON) Scan(src interface{}) error {
	return scanJSON(src, (*[]course.Module)(m))
}

func (c curriculumJSON) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]course.CurriculumItem(c))
}

func (c *curriculumJSON) Scan(src interface{}) error {
	return scanJSON(src, (*[]course.CurriculumItem)(c))
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.Errorf("unsupported JSONB source type %T", src)
	}
}

type courseRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Subtitle    string         `db:"subtitle"`
	Description string         `db:"description"`
	Category    string         `db:"category"`
	Level       string         `db:"level"`
	Language    string         `db:"language"`
	PriceCents  int64          `db:"price_cents"`
	ImageURL    string         `db:"image_url"`
	TeacherID   string         `db:"teacher_id"`
	IsPublished bool           `db:"is_published"`
	Modules     modulesJSON    `db:"modules"`
	Curriculum  curriculumJSON `db:"curriculum"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Subtitle:    r.Subtitle,
		Description: r.Description,
		Category:    r.Category,
		Level:       r.Level,
		Language:    r.Language,
		PriceCents:  r.PriceCents,
		ImageURL:    r.ImageURL,
		TeacherID:   r.TeacherID,
		IsPublished: r.IsPublished,
		Modules:     r.Modules,
		Curriculum:  r.Curriculum,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const courseColumns = `id, title, subtitle, description, category, level, language,
	price_cents, image_url, teacher_id, is_published, modules, curriculum, created_at, updated_at`

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	if crs.ID == "" {
		crs.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if crs.CreatedAt.IsZero() {
		crs.CreatedAt = now
	}
	crs.UpdatedAt = now

	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO course (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		crs.ID, crs.Title, crs.Subtitle, crs.Description, crs.Category, crs.Level, crs.Language,
		crs.PriceCents, crs.ImageURL, crs.TeacherID, crs.IsPublished,
		modulesJSON(crs.Modules), curriculumJSON(crs.Curriculum), crs.CreatedAt, crs.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM course WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.course(), nil
}

func (repo *courseRepository) QueryPublishedCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	where := []string{"is_published = TRUE"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if len(filter.Category) > 0 {
		where = append(where, fmt.Sprintf("category = ANY(%s)", arg(pq.Array(filter.Category))))
	}
	if len(filter.Level) > 0 {
		where = append(where, fmt.Sprintf("level = ANY(%s)", arg(pq.Array(filter.Level))))
	}
	if len(filter.Language) > 0 {
		where = append(where, fmt.Sprintf("language = ANY(%s)", arg(pq.Array(filter.Language))))
	}

	query := `SELECT ` + courseColumns + ` FROM course WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC`

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying published courses")
	}
	return repo.courses(rows), nil
}

func (repo *courseRepository) GetCoursesByID(ctx context.Context, ids []string) ([]course.Course, error) {
	var rows []courseRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+courseColumns+` FROM course WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying courses by id")
	}
	return repo.courses(rows), nil
}

func (repo *courseRepository) courses(rows []courseRow) []course.Course {
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses
}

package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
)

var ErrNotFound = errors.New("enrollment not found")

type (
	// Repository is the ledger storage. GrantEnrollment must be atomic: the
	// canonical write and the mirror rows commit together or not at all, and a
	// concurrent writer for the same (user, course) pair observes the first
	// writer's row instead of creating a second one.
	Repository interface {
		GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		// CreatePendingEnrollment inserts a pending row unless any row already
		// exists for the pair; it returns the stored row either way.
		CreatePendingEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		// GrantEnrollment promotes the pair to granted (inserting if absent) and
		// writes the mirrors in the same transaction. The bool reports whether
		// this call performed the grant; false means it was already granted and
		// the stored row is returned untouched.
		GrantEnrollment(ctx context.Context, enr Enrollment, mirrors GrantMirrors) (Enrollment, bool, error)
		// MarkEnrollmentFailed transitions pending -> failed; a granted row is
		// returned unchanged (grants are never demoted).
		MarkEnrollmentFailed(ctx context.Context, userID, courseID string) (Enrollment, error)
		ListGrantedEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
	}

	Service struct {
		repo    Repository
		catalog *course.Service
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, catalog *course.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// Grant describes a grant attempt from any origin.
type Grant struct {
	UserID        string
	CourseID      string
	Origin        Origin
	ProviderTxRef string
	UserEmail     string // optional; confirmation email recipient
}

// GrantAccess converts a confirmed purchase into durable access, exactly once.
// Replays and concurrent attempts for the same pair (same or different
// origins/tx refs) return the existing grant with created=false and cause no
// second mirror write. The suppressed duplicate is the expected idempotent
// outcome, not an error.
func (svc *Service) GrantAccess(ctx context.Context, g Grant) (Enrollment, bool, error) {
	now := time.Now().UTC()

	// Course info enriches the mirrors; a missing course does not block the
	// grant (the ledger row is what matters).
	crs, err := svc.catalog.GetByID(ctx, g.CourseID)
	if err != nil && pkgerrors.Cause(err) != course.ErrNotFound {
		return Enrollment{}, false, pkgerrors.Wrap(err, "fetching course for grant")
	}

	enr := Enrollment{
		ID:            uuid.New().String(),
		UserID:        g.UserID,
		CourseID:      g.CourseID,
		Status:        StatusGranted,
		Origin:        g.Origin,
		ProviderTxRef: null.NewString(g.ProviderTxRef, g.ProviderTxRef != ""),
		GrantedAt:     null.TimeFrom(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	mirrors := GrantMirrors{
		StudentCourse: StudentCourse{
			UserID:      g.UserID,
			CourseID:    g.CourseID,
			Title:       crs.Title,
			TeacherID:   crs.TeacherID,
			ImageURL:    crs.ImageURL,
			PurchasedAt: now,
		},
		Order: Order{
			ID:            uuid.New().String(),
			UserID:        g.UserID,
			CourseID:      g.CourseID,
			CourseTitle:   crs.Title,
			PriceCents:    crs.PriceCents,
			ProviderTxRef: null.NewString(g.ProviderTxRef, g.ProviderTxRef != ""),
			Status:        OrderStatusConfirmed,
			CreatedAt:     now,
		},
	}

	stored, created, err := svc.repo.GrantEnrollment(ctx, enr, mirrors)
	if err != nil {
		return Enrollment{}, false, pkgerrors.Wrap(err, "granting enrollment")
	}

	if !created {
		svc.logger.Info(
			fmt.Sprintf("duplicate grant suppressed: user=%s course=%s origin=%s", g.UserID, g.CourseID, g.Origin),
		)
		return stored, false, nil
	}

	if g.UserEmail != "" {
		svc.sendConfirmation(g.UserEmail, crs)
	}
	return stored, true, nil
}

// CreatePending records a checkout that has been started but not yet
// confirmed. A no-op when any record already exists for the pair.
func (svc *Service) CreatePending(ctx context.Context, userID, courseID string) (Enrollment, error) {
	now := time.Now().UTC()
	enr := Enrollment{
		ID:        uuid.New().String(),
		UserID:    userID,
		CourseID:  courseID,
		Status:    StatusPending,
		Origin:    OriginClientVerify,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored, err := svc.repo.CreatePendingEnrollment(ctx, enr)
	return stored, pkgerrors.Wrap(err, "creating pending enrollment")
}

// MarkFailed transitions a pending enrollment to failed. Granted enrollments
// are never demoted.
func (svc *Service) MarkFailed(ctx context.Context, userID, courseID string) (Enrollment, error) {
	return svc.repo.MarkEnrollmentFailed(ctx, userID, courseID)
}

// CheckAccess is the only read collaborators should branch on; it never
// consults the mirrors.
func (svc *Service) CheckAccess(ctx context.Context, userID, courseID string) (Status, error) {
	enr, err := svc.repo.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return StatusNone, nil
		}
		return StatusNone, pkgerrors.Wrap(err, "checking access")
	}
	return enr.Status, nil
}

// IsLessonAccessible is the single decision point for content serving:
// free-preview lessons are always accessible, everything else requires a
// granted enrollment.
func (svc *Service) IsLessonAccessible(ctx context.Context, userID string, crs course.Course, lessonID string) (bool, error) {
	if crs.IsFreePreview(lessonID) {
		return true, nil
	}
	if userID == "" {
		return false, nil
	}
	status, err := svc.CheckAccess(ctx, userID, crs.ID)
	if err != nil {
		return false, err
	}
	return status == StatusGranted, nil
}

// ListUserCourses returns the courses the user has granted access to, most
// recently granted first.
func (svc *Service) ListUserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	enrs, err := svc.repo.ListGrantedEnrollments(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "listing granted enrollments")
	}
	if len(enrs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(enrs))
	for _, enr := range enrs {
		ids = append(ids, enr.CourseID)
	}
	courses, err := svc.catalog.GetManyByID(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetching granted courses")
	}

	// preserve ledger ordering
	byID := make(map[string]course.Course, len(courses))
	for _, crs := range courses {
		byID[crs.ID] = crs
	}
	ordered := make([]course.Course, 0, len(courses))
	for _, enr := range enrs {
		if crs, ok := byID[enr.CourseID]; ok {
			ordered = append(ordered, crs)
		}
	}
	return ordered, nil
}

func (svc *Service) sendConfirmation(email string, crs course.Course) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Enrollment confirmed",
		TemplateName: "enrollment-confirm",
		TemplateData: struct {
			CourseTitle string
			CourseID    string
		}{CourseTitle: crs.Title, CourseID: crs.ID},
	})
}

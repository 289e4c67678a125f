package progress

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
)

var (
	// ErrNotPurchased signals the caller must redirect to purchase; it carries
	// no progress data so lesson-level state never leaks to non-purchasers.
	ErrNotPurchased = errors.New("course not purchased")
	// ErrNoProgress is returned by Reset when there is nothing to reset.
	ErrNoProgress = errors.New("progress not found")
)

type (
	// Repository stores per-(user, course) progress. UpdateProgress applies the
	// mutation atomically per key (row lock or equivalent): concurrent viewed
	// marks from multiple tabs must not drop each other's updates.
	Repository interface {
		GetProgress(ctx context.Context, userID, courseID string) (Progress, error) // ErrNoProgress
		// UpdateProgress loads (creating a zero record first when create is set),
		// applies the mutation and stores the result, all under a per-key lock.
		// Without create, an absent record yields ErrNoProgress.
		UpdateProgress(ctx context.Context, userID, courseID string, create bool, apply func(p *Progress) error) (Progress, error)
	}

	Service struct {
		repo    Repository
		enrSvc  *enrollment.Service
		catalog *course.Service
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, enrSvc *enrollment.Service, catalog *course.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		enrSvc:  enrSvc,
		catalog: catalog,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// MarkViewed describes a lesson-view event.
type MarkViewed struct {
	UserID    string
	CourseID  string
	LessonID  string
	UserEmail string // optional; completion email recipient
}

// MarkLessonViewed records a lesson view and recomputes completion against the
// course's current lesson universe. Viewing requires granted access; a
// free-preview lesson viewed without access is a no-op success and is never
// persisted. Re-marking a viewed lesson only recomputes the percentage.
func (svc *Service) MarkLessonViewed(ctx context.Context, mv MarkViewed) (Progress, error) {
	crs, err := svc.catalog.GetByID(ctx, mv.CourseID)
	if err != nil {
		return Progress{}, pkgerrors.Wrap(err, "fetching course")
	}

	status, err := svc.enrSvc.CheckAccess(ctx, mv.UserID, mv.CourseID)
	if err != nil {
		return Progress{}, err
	}
	if status != enrollment.StatusGranted {
		if crs.IsFreePreview(mv.LessonID) {
			// previews are not tracked
			return Progress{UserID: mv.UserID, CourseID: mv.CourseID}, nil
		}
		return Progress{}, ErrNotPurchased
	}

	universe := crs.LessonUniverse()
	now := time.Now().UTC()
	var completedNow bool

	prog, err := svc.repo.UpdateProgress(ctx, mv.UserID, mv.CourseID, true, func(p *Progress) error {
		if p.ID == "" {
			p.ID = uuid.New().String()
			p.CreatedAt = now
		}
		if !p.HasViewed(mv.LessonID) {
			p.ViewedLessons = append(p.ViewedLessons, mv.LessonID)
		}
		p.Percentage = ComputePercentage(p.ViewedLessons, universe)
		if p.Percentage == 100 && len(universe) > 0 && !p.Completed {
			p.Completed = true
			p.CompletionDate = null.TimeFrom(now)
			completedNow = true
		}
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Progress{}, pkgerrors.Wrap(err, "updating progress")
	}

	if completedNow {
		svc.sendCompletion(mv.UserEmail, crs)
	}
	return prog, nil
}

// GetProgress returns the user's progress in a course they have purchased.
// "Not started" is a first-class state: an absent record comes back zero-valued,
// not as an error. The percentage is recomputed against the current universe.
func (svc *Service) GetProgress(ctx context.Context, userID, courseID string) (Progress, error) {
	status, err := svc.enrSvc.CheckAccess(ctx, userID, courseID)
	if err != nil {
		return Progress{}, err
	}
	if status != enrollment.StatusGranted {
		return Progress{}, ErrNotPurchased
	}

	crs, err := svc.catalog.GetByID(ctx, courseID)
	if err != nil {
		return Progress{}, pkgerrors.Wrap(err, "fetching course")
	}

	prog, err := svc.repo.GetProgress(ctx, userID, courseID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNoProgress {
			return Progress{UserID: userID, CourseID: courseID}, nil
		}
		return Progress{}, pkgerrors.Wrap(err, "fetching progress")
	}
	prog.Percentage = ComputePercentage(prog.ViewedLessons, crs.LessonUniverse())
	return prog, nil
}

// Reset clears the record: viewed lessons, completion flag and date.
func (svc *Service) Reset(ctx context.Context, userID, courseID string) (Progress, error) {
	prog, err := svc.repo.UpdateProgress(ctx, userID, courseID, false, func(p *Progress) error {
		p.ViewedLessons = nil
		p.Percentage = 0
		p.Completed = false
		p.CompletionDate = null.Time{}
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		if pkgerrors.Cause(err) == ErrNoProgress {
			return Progress{}, ErrNoProgress
		}
		return Progress{}, pkgerrors.Wrap(err, "resetting progress")
	}
	return prog, nil
}

func (svc *Service) sendCompletion(email string, crs course.Course) {
	if svc.mailSvc == nil || email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Course completed",
		TemplateName: "course-completed",
		TemplateData: struct {
			CourseTitle string
		}{CourseTitle: crs.Title},
	})
}

package progress_test

import (
	"context"
	"sync"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
	"github.com/trezcool/kozi/core/progress"
	emailsvc "github.com/trezcool/kozi/services/email"
	dummydb "github.com/trezcool/kozi/storage/database/dummy"
	testutil "github.com/trezcool/kozi/tests"
)

type testDeps struct {
	svc        *progress.Service
	enrSvc     *enrollment.Service
	courseRepo course.Repository
}

func setup(t *testing.T) testDeps {
	testutil.Setup()
	emailsvc.ClearSentMessages()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	courseRepo := dummydb.NewCourseRepository(db)
	courseSvc := course.NewService(courseRepo)
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock()
	enrSvc := enrollment.NewService(dummydb.NewEnrollmentRepository(db), courseSvc, mailSvc, logger)
	svc := progress.NewService(dummydb.NewProgressRepository(db), enrSvc, courseSvc, mailSvc, logger)
	return testDeps{svc: svc, enrSvc: enrSvc, courseRepo: courseRepo}
}

func (d testDeps) grant(t *testing.T, userID, courseID string) {
	t.Helper()
	if _, _, err := d.enrSvc.GrantAccess(context.Background(), enrollment.Grant{
		UserID: userID, CourseID: courseID, Origin: enrollment.OriginDirect,
	}); err != nil {
		t.Fatalf("grant() failed: %v", err)
	}
}

func TestService_MarkLessonViewed(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewHierarchicalCourse("crs-1", 2, 2)) // 4 lessons
	d.grant(t, "usr-1", crs.ID)

	prog, err := d.svc.MarkLessonViewed(ctx, progress.MarkViewed{UserID: "usr-1", CourseID: crs.ID, LessonID: "m1-l1"})
	if err != nil {
		t.Fatalf("MarkLessonViewed() failed: %v", err)
	}
	assert.Equal(t, []string{"m1-l1"}, prog.ViewedLessons)
	assert.Equal(t, 25, prog.Percentage)
	assert.False(t, prog.Completed)

	// re-marking is benign
	prog, err = d.svc.MarkLessonViewed(ctx, progress.MarkViewed{UserID: "usr-1", CourseID: crs.ID, LessonID: "m1-l1"})
	if err != nil {
		t.Fatalf("MarkLessonViewed() failed: %v", err)
	}
	assert.Equal(t, []string{"m1-l1"}, prog.ViewedLessons)
	assert.Equal(t, 25, prog.Percentage)
}

func TestService_MarkLessonViewed_completion(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewLegacyCourse("crs-1", 4))
	d.grant(t, "usr-1", crs.ID)

	var prog progress.Progress
	var err error
	for i := 0; i < 4; i++ {
		prog, err = d.svc.MarkLessonViewed(ctx, progress.MarkViewed{
			UserID: "usr-1", CourseID: crs.ID, LessonID: course.SyntheticID(i), UserEmail: "usr1@test.cd",
		})
		if err != nil {
			t.Fatalf("MarkLessonViewed() failed: %v", err)
		}
	}
	assert.Equal(t, 100, prog.Percentage)
	assert.True(t, prog.Completed)
	assert.True(t, prog.CompletionDate.Valid)
	completedAt := prog.CompletionDate.Time

	msgs := testutil.WaitForSentEmails(t, 1)
	assert.Equal(t, "Course completed", msgs[0].Subject)

	// completion is monotonic; the date is set once
	prog, err = d.svc.MarkLessonViewed(ctx, progress.MarkViewed{
		UserID: "usr-1", CourseID: crs.ID, LessonID: "lecture-1", UserEmail: "usr1@test.cd",
	})
	if err != nil {
		t.Fatalf("MarkLessonViewed() failed: %v", err)
	}
	assert.True(t, prog.Completed)
	assert.Equal(t, completedAt, prog.CompletionDate.Time)
	assert.Len(t, emailsvc.GetSentMessages(), 1)
}

func TestService_MarkLessonViewed_accessControl(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewLegacyCourse("crs-1", 3, 0))

	// paid lesson without a grant
	_, err := d.svc.MarkLessonViewed(ctx, progress.MarkViewed{UserID: "usr-1", CourseID: crs.ID, LessonID: "lecture-2"})
	assert.Equal(t, progress.ErrNotPurchased, err)

	// free preview without a grant: served, never persisted
	prog, err := d.svc.MarkLessonViewed(ctx, progress.MarkViewed{UserID: "usr-1", CourseID: crs.ID, LessonID: "lecture-1"})
	if err != nil {
		t.Fatalf("MarkLessonViewed() failed: %v", err)
	}
	assert.Empty(t, prog.ViewedLessons)
	assert.Zero(t, prog.Percentage)

	// no record was created by the preview view
	d.grant(t, "usr-1", crs.ID)
	prog, err = d.svc.GetProgress(ctx, "usr-1", crs.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Empty(t, prog.ViewedLessons)

	// unknown course
	_, err = d.svc.MarkLessonViewed(ctx, progress.MarkViewed{UserID: "usr-1", CourseID: "ghost", LessonID: "lecture-1"})
	assert.Equal(t, course.ErrNotFound, pkgerrors.Cause(err))
}

func TestService_MarkLessonViewed_emptyUniverse(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewHierarchicalCourse("crs-1")) // no content
	d.grant(t, "usr-1", crs.ID)

	prog, err := d.svc.MarkLessonViewed(ctx, progress.MarkViewed{UserID: "usr-1", CourseID: crs.ID, LessonID: "stale-1"})
	if err != nil {
		t.Fatalf("MarkLessonViewed() failed: %v", err)
	}
	assert.Zero(t, prog.Percentage)
	assert.False(t, prog.Completed, "an empty universe never completes")
}

func TestService_MarkLessonViewed_concurrent(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewLegacyCourse("crs-1", 10))
	d.grant(t, "usr-1", crs.ID)

	// two tabs marking different lessons must not drop each other's updates
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := d.svc.MarkLessonViewed(ctx, progress.MarkViewed{
				UserID: "usr-1", CourseID: crs.ID, LessonID: course.SyntheticID(i),
			}); err != nil {
				t.Errorf("MarkLessonViewed() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	prog, err := d.svc.GetProgress(ctx, "usr-1", crs.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Len(t, prog.ViewedLessons, 10)
	assert.Equal(t, 100, prog.Percentage)
}

func TestService_GetProgress(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewLegacyCourse("crs-1", 4))

	// progress never leaks to non-purchasers
	_, err := d.svc.GetProgress(ctx, "usr-1", crs.ID)
	assert.Equal(t, progress.ErrNotPurchased, err)

	d.grant(t, "usr-1", crs.ID)

	// not started is a first-class state
	prog, err := d.svc.GetProgress(ctx, "usr-1", crs.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Empty(t, prog.ViewedLessons)
	assert.Zero(t, prog.Percentage)
	assert.False(t, prog.Completed)

	for i := 0; i < 2; i++ {
		if _, err = d.svc.MarkLessonViewed(ctx, progress.MarkViewed{
			UserID: "usr-1", CourseID: crs.ID, LessonID: course.SyntheticID(i),
		}); err != nil {
			t.Fatalf("MarkLessonViewed() failed: %v", err)
		}
	}
	prog, err = d.svc.GetProgress(ctx, "usr-1", crs.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Equal(t, 50, prog.Percentage)
}

func TestService_GetProgress_staleLessons(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewLegacyCourse("crs-1", 2))
	d.grant(t, "usr-1", crs.ID)

	for i := 0; i < 2; i++ {
		if _, err := d.svc.MarkLessonViewed(ctx, progress.MarkViewed{
			UserID: "usr-1", CourseID: crs.ID, LessonID: course.SyntheticID(i),
		}); err != nil {
			t.Fatalf("MarkLessonViewed() failed: %v", err)
		}
	}

	// the course grows; recorded views survive, the percentage is recomputed
	crs.Curriculum = append(crs.Curriculum, course.CurriculumItem{Title: "Lecture 3"}, course.CurriculumItem{Title: "Lecture 4"})
	if _, err := d.courseRepo.CreateCourse(ctx, crs); err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}

	prog, err := d.svc.GetProgress(ctx, "usr-1", crs.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Len(t, prog.ViewedLessons, 2)
	assert.Equal(t, 50, prog.Percentage)
}

func TestService_Reset(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewLegacyCourse("crs-1", 2))
	d.grant(t, "usr-1", crs.ID)

	// nothing to reset yet
	_, err := d.svc.Reset(ctx, "usr-1", crs.ID)
	assert.Equal(t, progress.ErrNoProgress, err)

	for i := 0; i < 2; i++ {
		if _, err = d.svc.MarkLessonViewed(ctx, progress.MarkViewed{
			UserID: "usr-1", CourseID: crs.ID, LessonID: course.SyntheticID(i),
		}); err != nil {
			t.Fatalf("MarkLessonViewed() failed: %v", err)
		}
	}

	prog, err := d.svc.Reset(ctx, "usr-1", crs.ID)
	if err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}
	assert.Empty(t, prog.ViewedLessons)
	assert.Zero(t, prog.Percentage)
	assert.False(t, prog.Completed)
	assert.False(t, prog.CompletionDate.Valid)
}

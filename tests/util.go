package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	appfs "github.com/trezcool/kozi/fs"
	emailsvc "github.com/trezcool/kozi/services/email"
)

// Logger is a core.Logger that records messages for assertions.
type Logger struct {
	mu      sync.Mutex
	entries []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *Logger) Enable(bool)                        {}
func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Entries returns a copy of everything logged so far.
func (l *Logger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// NewHierarchicalCourse builds a published course in the current content
// shape; lessonsPerModule gives the lesson count of each module. Lesson ids
// are "m{i}-l{j}" (1-based).
func NewHierarchicalCourse(id string, lessonsPerModule ...int) course.Course {
	now := time.Now().UTC()
	crs := course.Course{
		ID:          id,
		Title:       "Course " + id,
		Category:    "engineering",
		Level:       "beginner",
		Language:    "english",
		PriceCents:  4999,
		TeacherID:   "teacher-1",
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, n := range lessonsPerModule {
		mod := course.Module{
			ID:    fmt.Sprintf("m%d", i+1),
			Title: fmt.Sprintf("Module %d", i+1),
		}
		for j := 0; j < n; j++ {
			mod.Lessons = append(mod.Lessons, course.Lesson{
				ID:    fmt.Sprintf("m%d-l%d", i+1, j+1),
				Kind:  course.KindVideo,
				Title: fmt.Sprintf("Lesson %d.%d", i+1, j+1),
			})
		}
		crs.Modules = append(crs.Modules, mod)
	}
	return crs
}

// NewLegacyCourse builds a published course in the legacy flat shape with
// numLessons items; previewIdx are the 0-based indices flagged free preview.
func NewLegacyCourse(id string, numLessons int, previewIdx ...int) course.Course {
	crs := NewHierarchicalCourse(id)
	for i := 0; i < numLessons; i++ {
		crs.Curriculum = append(crs.Curriculum, course.CurriculumItem{
			Title: fmt.Sprintf("Lecture %d", i+1),
			Kind:  course.KindVideo,
		})
	}
	for _, idx := range previewIdx {
		crs.Curriculum[idx].FreePreview = true
	}
	return crs
}

// CreateCourse stores a course fixture or fails the test.
func CreateCourse(t *testing.T, repo course.Repository, crs course.Course) course.Course {
	t.Helper()
	stored, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return stored
}

// Setup configures the test environment: test config and embedded templates.
func Setup() {
	core.TestConfig()
	core.TemplatesFS = appfs.FS
}

// WaitForSentEmails waits for the async mail service to record want messages.
func WaitForSentEmails(t *testing.T, want int) []core.EmailMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := emailsvc.GetSentMessages(); len(msgs) >= want {
			return msgs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("WaitForSentEmails(): want %d message(s), got %d", want, len(emailsvc.GetSentMessages()))
	return nil
}

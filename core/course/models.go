package course

import (
	"fmt"
	"strings"
	"time"
)

// Lesson kinds
const (
	KindVideo = "video"
	KindPDF   = "pdf"
)

// SyntheticIDPrefix prefixes the positional lesson ids derived from the
// legacy flat curriculum: "lecture-1", "lecture-2", ...
const SyntheticIDPrefix = "lecture-"

type (
	// Lesson is a single piece of content inside a Module.
	Lesson struct {
		ID              string `json:"lesson_id"`
		Kind            string `json:"kind"`
		Title           string `json:"title"`
		FileURL         string `json:"file_url"`
		DurationMinutes int    `json:"duration_minutes"`
	}

	// Module is an ordered group of lessons (current content shape).
	Module struct {
		ID      string   `json:"module_id"`
		Title   string   `json:"title"`
		Lessons []Lesson `json:"lessons"`
	}

	// CurriculumItem is a lesson in the legacy flat content shape. Items carry
	// no explicit id; identity is positional ("lecture-{index+1}").
	CurriculumItem struct {
		Title           string `json:"title"`
		Kind            string `json:"kind"`
		FileURL         string `json:"file_url"`
		FreePreview     bool   `json:"free_preview"`
		DurationMinutes int    `json:"duration_minutes"`
	}

	Course struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Subtitle    string    `json:"subtitle"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Level       string    `json:"level"`
		Language    string    `json:"language"`
		PriceCents  int64     `json:"price_cents"`
		ImageURL    string    `json:"image_url"`
		TeacherID   string    `json:"teacher_id"`
		IsPublished bool      `json:"is_published"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC

		// Exactly one of the two content shapes is authoritative at read time;
		// Modules wins when non-empty.
		Modules    []Module         `json:"modules,omitempty"`
		Curriculum []CurriculumItem `json:"curriculum,omitempty"`
	}
)

// SyntheticID returns the positional id of a legacy curriculum item.
func SyntheticID(index int) string {
	return fmt.Sprintf("%s%d", SyntheticIDPrefix, index+1)
}

// LessonUniverse returns the ordered lesson ids the course currently contains:
// explicit ids flattened in module order when the hierarchical shape is
// populated, otherwise positional ids synthesized from the flat curriculum.
// A course with neither shape has an empty universe.
//
// Reordering a flat curriculum remaps the synthetic ids of previously-recorded
// progress; this is a known data-integrity gap and deliberately not "fixed" here.
func (c *Course) LessonUniverse() []string {
	if len(c.Modules) > 0 {
		var ids []string
		for _, mod := range c.Modules {
			for _, lsn := range mod.Lessons {
				ids = append(ids, lsn.ID)
			}
		}
		return ids
	}
	if n := len(c.Curriculum); n > 0 {
		ids := make([]string, 0, n)
		for i := range c.Curriculum {
			ids = append(ids, SyntheticID(i))
		}
		return ids
	}
	return nil
}

// IsFreePreview reports whether the given lesson is flagged as a free preview
// in the course's curriculum. Only the legacy flat shape carries the flag;
// hierarchical lessons are never previews.
func (c *Course) IsFreePreview(lessonID string) bool {
	if len(c.Modules) > 0 || !strings.HasPrefix(lessonID, SyntheticIDPrefix) {
		return false
	}
	for i, item := range c.Curriculum {
		if SyntheticID(i) == lessonID {
			return item.FreePreview
		}
	}
	return false
}

// FindLesson resolves a lesson id from either content shape. Legacy items are
// returned as a Lesson with their synthetic id.
func (c *Course) FindLesson(lessonID string) (Lesson, bool) {
	if len(c.Modules) > 0 {
		for _, mod := range c.Modules {
			for _, lsn := range mod.Lessons {
				if lsn.ID == lessonID {
					return lsn, true
				}
			}
		}
		return Lesson{}, false
	}
	for i, item := range c.Curriculum {
		if SyntheticID(i) == lessonID {
			return Lesson{
				ID:              lessonID,
				Kind:            item.Kind,
				Title:           item.Title,
				FileURL:         item.FileURL,
				DurationMinutes: item.DurationMinutes,
			}, true
		}
	}
	return Lesson{}, false
}

// QueryFilter narrows the published course listing.
// Search does a case-insensitive match on Title or Description.
type QueryFilter struct {
	Search   string   `query:"search"`
	Category []string `query:"category"`
	Level    []string `query:"level"`
	Language []string `query:"language"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == nil && qf.Level == nil && qf.Language == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = strings.TrimSpace(qf.Search)
}

package progress

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Progress tracks the lessons a user has viewed in a course they have access
// to. ViewedLessons has set semantics; the stored percentage is a cache and is
// recomputed against the current lesson universe on every read that matters.
type Progress struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CourseID       string    `json:"course_id"`
	ViewedLessons  []string  `json:"viewed_lessons"`
	Percentage     int       `json:"percentage"`
	Completed      bool      `json:"completed"`
	CompletionDate null.Time `json:"completion_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (p *Progress) HasViewed(lessonID string) bool {
	for _, id := range p.ViewedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// ComputePercentage returns the share of the universe's lessons present in
// viewed, rounded to the nearest percent; 0 for an empty universe. Viewed ids
// no longer in the universe (stale ids from a reshaped curriculum) do not count.
func ComputePercentage(viewed, universe []string) int {
	if len(universe) == 0 {
		return 0
	}
	inUniverse := make(map[string]struct{}, len(universe))
	for _, id := range universe {
		inUniverse[id] = struct{}{}
	}
	var count int
	seen := make(map[string]struct{}, len(viewed))
	for _, id := range viewed {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := inUniverse[id]; ok {
			count++
		}
	}
	pct := int(float64(count)/float64(len(universe))*100 + 0.5)
	if pct > 100 {
		pct = 100
	}
	return pct
}

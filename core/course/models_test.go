package course

import (
	"reflect"
	"testing"
)

func hierCourse() Course {
	return Course{
		ID: "crs-1",
		Modules: []Module{
			{ID: "m1", Lessons: []Lesson{{ID: "m1-l1"}, {ID: "m1-l2"}}},
			{ID: "m2", Lessons: []Lesson{{ID: "m2-l1"}}},
		},
	}
}

func legacyCourse(previewIdx ...int) Course {
	crs := Course{
		ID: "crs-2",
		Curriculum: []CurriculumItem{
			{Title: "Intro"}, {Title: "Basics"}, {Title: "Advanced"}, {Title: "Outro"},
		},
	}
	for _, i := range previewIdx {
		crs.Curriculum[i].FreePreview = true
	}
	return crs
}

func TestCourse_LessonUniverse(t *testing.T) {
	tests := []struct {
		name string
		crs  Course
		want []string
	}{
		{name: "hierarchical: explicit ids in module order", crs: hierCourse(), want: []string{"m1-l1", "m1-l2", "m2-l1"}},
		{name: "legacy: synthetic positional ids", crs: legacyCourse(), want: []string{"lecture-1", "lecture-2", "lecture-3", "lecture-4"}},
		{name: "no content", crs: Course{ID: "empty"}, want: nil},
		{
			name: "hierarchical wins when both shapes present",
			crs: Course{
				Modules:    []Module{{ID: "m1", Lessons: []Lesson{{ID: "m1-l1"}}}},
				Curriculum: []CurriculumItem{{Title: "legacy"}},
			},
			want: []string{"m1-l1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.crs.LessonUniverse()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LessonUniverse() = %v, want %v", got, tt.want)
			}
			// derivation is deterministic
			if again := tt.crs.LessonUniverse(); !reflect.DeepEqual(got, again) {
				t.Errorf("LessonUniverse() not deterministic: %v != %v", got, again)
			}
		})
	}
}

func TestCourse_IsFreePreview(t *testing.T) {
	legacy := legacyCourse(0, 2)

	tests := []struct {
		name     string
		crs      Course
		lessonID string
		want     bool
	}{
		{name: "flagged item", crs: legacy, lessonID: "lecture-1", want: true},
		{name: "second flagged item", crs: legacy, lessonID: "lecture-3", want: true},
		{name: "unflagged item", crs: legacy, lessonID: "lecture-2", want: false},
		{name: "out of range", crs: legacy, lessonID: "lecture-99", want: false},
		{name: "non-synthetic id", crs: legacy, lessonID: "m1-l1", want: false},
		{name: "hierarchical lessons are never previews", crs: hierCourse(), lessonID: "m1-l1", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.crs.IsFreePreview(tt.lessonID); got != tt.want {
				t.Errorf("IsFreePreview(%q) = %v, want %v", tt.lessonID, got, tt.want)
			}
		})
	}
}

func TestCourse_FindLesson(t *testing.T) {
	hier := hierCourse()
	legacy := legacyCourse()

	if _, ok := hier.FindLesson("m2-l1"); !ok {
		t.Error("FindLesson() did not resolve an explicit id")
	}
	if _, ok := hier.FindLesson("lecture-1"); ok {
		t.Error("FindLesson() resolved a synthetic id against the hierarchical shape")
	}

	lsn, ok := legacy.FindLesson("lecture-2")
	if !ok {
		t.Fatal("FindLesson() did not resolve a synthetic id")
	}
	if lsn.ID != "lecture-2" || lsn.Title != "Basics" {
		t.Errorf("FindLesson() = %+v, want lecture-2 / Basics", lsn)
	}

	if _, ok = legacy.FindLesson("lecture-5"); ok {
		t.Error("FindLesson() resolved an out-of-range synthetic id")
	}
}

func TestSyntheticID(t *testing.T) {
	if got := SyntheticID(0); got != "lecture-1" {
		t.Errorf("SyntheticID(0) = %q, want lecture-1", got)
	}
	if got := SyntheticID(41); got != "lecture-42" {
		t.Errorf("SyntheticID(41) = %q, want lecture-42", got)
	}
}

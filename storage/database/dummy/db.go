package dummydb

import (
	"sync"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
	"github.com/trezcool/kozi/core/progress"
)

type (
	DB struct {
		course     *courseTable
		enrollment *enrollmentTable
		progress   *progressTable
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
		order []string // insertion order
	}

	pairKey struct {
		userID   string
		courseID string
	}

	enrollmentTable struct {
		sync.RWMutex
		table          map[pairKey]*enrollment.Enrollment
		studentCourses map[pairKey]*enrollment.StudentCourse
		orders         []enrollment.Order
	}

	progressTable struct {
		sync.RWMutex
		table map[pairKey]*progress.Progress
	}
)

func Open() (*DB, error) {
	db := &DB{
		course: &courseTable{table: make(map[string]*course.Course)},
		enrollment: &enrollmentTable{
			table:          make(map[pairKey]*enrollment.Enrollment),
			studentCourses: make(map[pairKey]*enrollment.StudentCourse),
		},
		progress: &progressTable{table: make(map[pairKey]*progress.Progress)},
	}
	return db, nil
}

// StudentCourses returns the student_course mirror rows for a user; tests use
// it to assert a grant reconciled the mirrors exactly once.
func (db *DB) StudentCourses(userID string) []enrollment.StudentCourse {
	db.enrollment.RLock()
	defer db.enrollment.RUnlock()

	var rows []enrollment.StudentCourse
	for key, sc := range db.enrollment.studentCourses {
		if key.userID == userID {
			rows = append(rows, *sc)
		}
	}
	return rows
}

// Orders returns the order mirror rows for a user.
func (db *DB) Orders(userID string) []enrollment.Order {
	db.enrollment.RLock()
	defer db.enrollment.RUnlock()

	var rows []enrollment.Order
	for _, ord := range db.enrollment.orders {
		if ord.UserID == userID {
			rows = append(rows, ord)
		}
	}
	return rows
}

package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kozi/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if crs.ID == "" {
		crs.ID = uuid.New().String()
	}
	repo.db.table[crs.ID] = &crs
	repo.db.order = append(repo.db.order, crs.ID)
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryPublishedCourses(_ context.Context, filter course.QueryFilter) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var courses []course.Course
	// newest first
	for i := len(repo.db.order) - 1; i >= 0; i-- {
		crs := repo.db.table[repo.db.order[i]]
		if !crs.IsPublished {
			continue
		}
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(crs.Title), search) &&
				!strings.Contains(strings.ToLower(crs.Description), search) {
				continue
			}
		}
		if len(filter.Category) > 0 && !contains(filter.Category, crs.Category) {
			continue
		}
		if len(filter.Level) > 0 && !contains(filter.Level, crs.Level) {
			continue
		}
		if len(filter.Language) > 0 && !contains(filter.Language, crs.Language) {
			continue
		}
		courses = append(courses, *crs)
	}
	return courses, nil
}

func (repo *courseRepository) GetCoursesByID(_ context.Context, ids []string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if crs, ok := repo.db.table[id]; ok {
			courses = append(courses, *crs)
		}
	}
	return courses, nil
}

func contains(vals []string, v string) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}

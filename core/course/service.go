package course

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("course not found")

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		// QueryPublishedCourses applies AND operation on available QueryFilter fields,
		// newest courses first.
		QueryPublishedCourses(ctx context.Context, filter QueryFilter) ([]Course, error)
		GetCoursesByID(ctx context.Context, ids []string) ([]Course, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) QueryPublished(ctx context.Context, filter QueryFilter) ([]Course, error) {
	filter.Clean()
	return svc.repo.QueryPublishedCourses(ctx, filter)
}

func (svc *Service) GetManyByID(ctx context.Context, ids []string) ([]Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return svc.repo.GetCoursesByID(ctx, ids)
}

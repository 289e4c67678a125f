package dummydb

import (
	"context"

	"github.com/trezcool/kozi/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) GetProgress(_ context.Context, userID, courseID string) (progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prog, ok := repo.db.table[pairKey{userID, courseID}]; ok {
		cpy := *prog
		cpy.ViewedLessons = append([]string(nil), prog.ViewedLessons...)
		return cpy, nil
	}
	return progress.Progress{}, progress.ErrNoProgress
}

// UpdateProgress holds the table lock for the whole read-modify-write, the
// in-memory equivalent of the SQL row lock.
func (repo *progressRepository) UpdateProgress(_ context.Context, userID, courseID string, create bool, apply func(p *progress.Progress) error) (progress.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := pairKey{userID, courseID}
	prog, ok := repo.db.table[key]
	if !ok {
		if !create {
			return progress.Progress{}, progress.ErrNoProgress
		}
		prog = &progress.Progress{UserID: userID, CourseID: courseID}
	}

	cpy := *prog
	cpy.ViewedLessons = append([]string(nil), prog.ViewedLessons...)
	if err := apply(&cpy); err != nil {
		return progress.Progress{}, err
	}
	repo.db.table[key] = &cpy
	return cpy, nil
}

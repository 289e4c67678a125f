package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/kozi/core/enrollment"
)

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db.enrollment}
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if enr, ok := repo.db.table[pairKey{userID, courseID}]; ok {
		return *enr, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) CreatePendingEnrollment(_ context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := pairKey{enr.UserID, enr.CourseID}
	if existing, ok := repo.db.table[key]; ok {
		return *existing, nil
	}
	repo.db.table[key] = &enr
	return enr, nil
}

// GrantEnrollment mimics the storage-level compare-and-set: under the table
// lock, an existing granted row wins and everything else is promoted with the
// mirrors written exactly once.
func (repo *enrollmentRepository) GrantEnrollment(_ context.Context, enr enrollment.Enrollment, mirrors enrollment.GrantMirrors) (enrollment.Enrollment, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := pairKey{enr.UserID, enr.CourseID}
	if existing, ok := repo.db.table[key]; ok {
		if existing.Status == enrollment.StatusGranted {
			return *existing, false, nil
		}
		// promote pending/failed, keep the original creation time
		enr.ID = existing.ID
		enr.CreatedAt = existing.CreatedAt
	}
	repo.db.table[key] = &enr

	sc := mirrors.StudentCourse
	if _, ok := repo.db.studentCourses[key]; !ok {
		repo.db.studentCourses[key] = &sc
	}
	repo.db.orders = append(repo.db.orders, mirrors.Order)
	return enr, true, nil
}

func (repo *enrollmentRepository) MarkEnrollmentFailed(_ context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := pairKey{userID, courseID}
	enr, ok := repo.db.table[key]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	if enr.Status == enrollment.StatusPending {
		enr.Status = enrollment.StatusFailed
	}
	return *enr, nil
}

func (repo *enrollmentRepository) ListGrantedEnrollments(_ context.Context, userID string) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []enrollment.Enrollment
	for key, enr := range repo.db.table {
		if key.userID == userID && enr.Status == enrollment.StatusGranted {
			enrs = append(enrs, *enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].GrantedAt.Time.After(enrs[j].GrantedAt.Time) })
	return enrs, nil
}

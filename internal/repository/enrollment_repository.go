package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

// EnrollmentRepository stores student course memberships.
type EnrollmentRepository struct {
	enrollments *store.Collection[models.Enrollment]
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(driver store.Driver) *EnrollmentRepository {
	return &EnrollmentRepository{enrollments: store.NewCollection[models.Enrollment](driver, store.Enrollments)}
}

// Create enrolls a student. It reports created=false and returns the existing
// record when the student was already enrolled.
func (r *EnrollmentRepository) Create(ctx context.Context, studentID, courseID string, at time.Time) (*models.Enrollment, bool, error) {
	enrollment := &models.Enrollment{
		ID:         EnrollmentID(studentID, courseID),
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: at,
	}
	err := r.enrollments.Create(ctx, enrollment.ID, enrollment)
	if errors.Is(err, store.ErrConflict) {
		existing, err := r.enrollments.Get(ctx, enrollment.ID)
		if err != nil {
			return nil, false, fmt.Errorf("load enrollment: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create enrollment: %w", err)
	}
	return enrollment, true, nil
}

// Exists reports whether the student is enrolled in the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	_, err := r.enrollments.Get(ctx, EnrollmentID(studentID, courseID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListByStudent returns a student's enrollments, oldest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	return r.find(ctx, func(e *models.Enrollment) bool { return e.StudentID == studentID })
}

// ListByCourses returns the enrollments of any of the given courses.
func (r *EnrollmentRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Enrollment, error) {
	set := toSet(courseIDs)
	return r.find(ctx, func(e *models.Enrollment) bool {
		_, ok := set[e.CourseID]
		return ok
	})
}

// ListAll returns every enrollment.
func (r *EnrollmentRepository) ListAll(ctx context.Context) ([]models.Enrollment, error) {
	return r.find(ctx, nil)
}

func (r *EnrollmentRepository) find(ctx context.Context, pred func(*models.Enrollment) bool) ([]models.Enrollment, error) {
	items, err := r.enrollments.Find(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].EnrolledAt.Before(items[j].EnrolledAt) })
	return items, nil
}

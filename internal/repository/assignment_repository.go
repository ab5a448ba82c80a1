package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

// AssignmentRepository provides access to course assignments.
type AssignmentRepository struct {
	assignments *store.Collection[models.Assignment]
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(driver store.Driver) *AssignmentRepository {
	return &AssignmentRepository{assignments: store.NewCollection[models.Assignment](driver, store.Assignments)}
}

// Create stores a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = newID()
	}
	if err := r.assignments.Create(ctx, assignment.ID, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := r.assignments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return assignment, nil
}

// ListByCourse returns a course's assignments by ascending due date.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	return r.ListByCourses(ctx, []string{courseID})
}

// ListByCourses returns the assignments of several courses by ascending due date.
func (r *AssignmentRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Assignment, error) {
	set := toSet(courseIDs)
	assignments, err := r.assignments.Find(ctx, func(a *models.Assignment) bool {
		_, ok := set[a.CourseID]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		return assignments[i].DueDate.Before(assignments[j].DueDate)
	})
	return assignments, nil
}

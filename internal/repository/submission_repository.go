package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

// SubmissionRepository stores at most one submission per (assignment, student).
type SubmissionRepository struct {
	submissions *store.Collection[models.Submission]
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(driver store.Driver) *SubmissionRepository {
	return &SubmissionRepository{submissions: store.NewCollection[models.Submission](driver, store.Submissions)}
}

// Upsert atomically creates or rewrites the student's submission. fn gets the
// existing submission (nil on first submit) and returns the value to store.
func (r *SubmissionRepository) Upsert(ctx context.Context, assignmentID, studentID string, fn func(existing *models.Submission) (*models.Submission, error)) (*models.Submission, error) {
	id := SubmissionID(assignmentID, studentID)
	sub, err := r.submissions.Upsert(ctx, id, func(current *models.Submission) (*models.Submission, error) {
		next, err := fn(current)
		if err != nil || next == nil {
			return next, err
		}
		next.ID = id
		next.AssignmentID = assignmentID
		next.StudentID = studentID
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert submission: %w", err)
	}
	return sub, nil
}

// FindByID returns a submission by id.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := r.submissions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return sub, nil
}

// FindByAssignmentAndStudent returns the student's submission for an assignment.
func (r *SubmissionRepository) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	return r.FindByID(ctx, SubmissionID(assignmentID, studentID))
}

// Update applies fn to an existing submission atomically.
func (r *SubmissionRepository) Update(ctx context.Context, id string, fn func(*models.Submission) error) (*models.Submission, error) {
	sub, err := r.submissions.Update(ctx, id, fn)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update submission: %w", err)
	}
	return sub, nil
}

// ListByAssignment returns every submission for an assignment.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	return r.find(ctx, func(s *models.Submission) bool { return s.AssignmentID == assignmentID })
}

// ListByStudent returns every submission made by a student.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	return r.find(ctx, func(s *models.Submission) bool { return s.StudentID == studentID })
}

// ListByAssignments returns the submissions for any of the given assignments.
func (r *SubmissionRepository) ListByAssignments(ctx context.Context, assignmentIDs []string) ([]models.Submission, error) {
	set := toSet(assignmentIDs)
	return r.find(ctx, func(s *models.Submission) bool {
		_, ok := set[s.AssignmentID]
		return ok
	})
}

func (r *SubmissionRepository) find(ctx context.Context, pred func(*models.Submission) bool) ([]models.Submission, error) {
	subs, err := r.submissions.Find(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

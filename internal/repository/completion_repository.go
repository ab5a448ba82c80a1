package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

// CompletionRepository stores lesson completion records.
type CompletionRepository struct {
	completions *store.Collection[models.LessonCompletion]
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(driver store.Driver) *CompletionRepository {
	return &CompletionRepository{completions: store.NewCollection[models.LessonCompletion](driver, store.LessonCompletions)}
}

// Create records a completion once; repeated calls return the first record
// with created=false.
func (r *CompletionRepository) Create(ctx context.Context, completion *models.LessonCompletion) (*models.LessonCompletion, bool, error) {
	completion.ID = CompletionID(completion.UserID, completion.LessonID)
	err := r.completions.Create(ctx, completion.ID, completion)
	if errors.Is(err, store.ErrConflict) {
		existing, err := r.completions.Get(ctx, completion.ID)
		if err != nil {
			return nil, false, fmt.Errorf("load completion: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create completion: %w", err)
	}
	return completion, true, nil
}

// ListByUserCourse returns a user's completions inside one course.
func (r *CompletionRepository) ListByUserCourse(ctx context.Context, userID, courseID string) ([]models.LessonCompletion, error) {
	items, err := r.completions.Find(ctx, func(c *models.LessonCompletion) bool {
		return c.UserID == userID && c.CourseID == courseID
	})
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return items, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

// ModuleRepository stores course modules with their embedded lessons.
type ModuleRepository struct {
	modules *store.Collection[models.Module]
}

// NewModuleRepository creates a new ModuleRepository.
func NewModuleRepository(driver store.Driver) *ModuleRepository {
	return &ModuleRepository{modules: store.NewCollection[models.Module](driver, store.Modules)}
}

// Create stores a module. Position defaults to the end of the course.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = newID()
	}
	if module.Position == 0 {
		existing, err := r.ListByCourse(ctx, module.CourseID)
		if err != nil {
			return err
		}
		module.Position = len(existing) + 1
	}
	if module.Lessons == nil {
		module.Lessons = []models.Lesson{}
	}
	if err := r.modules.Create(ctx, module.ID, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// FindByID returns a module by id.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	module, err := r.modules.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find module: %w", err)
	}
	return module, nil
}

// ListByCourse returns a course's modules in position order.
func (r *ModuleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Module, error) {
	modules, err := r.modules.Find(ctx, func(m *models.Module) bool { return m.CourseID == courseID })
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Position == modules[j].Position {
			return modules[i].CreatedAt.Before(modules[j].CreatedAt)
		}
		return modules[i].Position < modules[j].Position
	})
	return modules, nil
}

// AppendLesson atomically adds a lesson to the end of a module.
func (r *ModuleRepository) AppendLesson(ctx context.Context, moduleID string, lesson models.Lesson) (*models.Module, error) {
	if lesson.ID == "" {
		lesson.ID = newID()
	}
	module, err := r.modules.Update(ctx, moduleID, func(m *models.Module) error {
		m.Lessons = append(m.Lessons, lesson)
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("append lesson: %w", err)
	}
	return module, nil
}

// RemoveLesson drops a lesson from a module. Removing an unknown lesson is a
// no-op.
func (r *ModuleRepository) RemoveLesson(ctx context.Context, moduleID, lessonID string) (*models.Module, error) {
	module, err := r.modules.Update(ctx, moduleID, func(m *models.Module) error {
		kept := m.Lessons[:0]
		for _, lesson := range m.Lessons {
			if lesson.ID != lessonID {
				kept = append(kept, lesson)
			}
		}
		m.Lessons = kept
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("remove lesson: %w", err)
	}
	return module, nil
}

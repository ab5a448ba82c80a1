package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

// CourseRepository provides access to the course catalog.
type CourseRepository struct {
	courses *store.Collection[models.Course]
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(driver store.Driver) *CourseRepository {
	return &CourseRepository{courses: store.NewCollection[models.Course](driver, store.Courses)}
}

// Create stores a new course, assigning an id when missing.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = newID()
	}
	if err := r.courses.Create(ctx, course.ID, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, err := r.courses.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return course, nil
}

// List returns every course sorted by title.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	return r.find(ctx, nil)
}

// ListByTeacher returns the courses owned by a teacher.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error) {
	return r.find(ctx, func(c *models.Course) bool { return c.TeacherID == teacherID })
}

// ListByIDs returns the courses with the given ids.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	set := toSet(ids)
	return r.find(ctx, func(c *models.Course) bool {
		_, ok := set[c.ID]
		return ok
	})
}

func (r *CourseRepository) find(ctx context.Context, pred func(*models.Course) bool) ([]models.Course, error) {
	courses, err := r.courses.Find(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].Title == courses[j].Title {
			return courses[i].CreatedAt.Before(courses[j].CreatedAt)
		}
		return courses[i].Title < courses[j].Title
	})
	return courses, nil
}

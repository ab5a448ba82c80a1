package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type courseEnrollmentRepository interface {
	Create(ctx context.Context, studentID, courseID string, at time.Time) (*models.Enrollment, bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseProgress interface {
	CourseProgress(ctx context.Context, studentID, courseID string) (dto.Progress, error)
}

// CourseServiceParams groups the dependencies of CourseService.
type CourseServiceParams struct {
	Courses     courseRepository
	Enrollments courseEnrollmentRepository
	Users       userLookup
	Progress    courseProgress
	Cache       *CacheService
	CacheTTL    time.Duration
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// CourseService manages the course catalog and enrollments.
type CourseService struct {
	courses     courseRepository
	enrollments courseEnrollmentRepository
	users       userLookup
	progress    courseProgress
	cache       *CacheService
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCourseService constructs a CourseService.
func NewCourseService(params CourseServiceParams) *CourseService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{
		courses:     params.Courses,
		enrollments: params.Enrollments,
		users:       params.Users,
		progress:    params.Progress,
		cache:       params.Cache,
		cacheTTL:    params.CacheTTL,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns the full catalog. The bool reports a cache hit.
func (s *CourseService) List(ctx context.Context) ([]models.Course, bool, error) {
	var cached []models.Course
	if hit, _ := s.cache.Get(ctx, cacheKeyCourseList, &cached); hit {
		return cached, true, nil
	}

	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to list courses")
	}
	_ = s.cache.Set(ctx, cacheKeyCourseList, courses, s.cacheTTL)
	return courses, false, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	return loadCourse(ctx, s.courses, id)
}

// Create adds a course owned by the calling teacher.
func (s *CourseService) Create(ctx context.Context, actor models.Actor, req models.CreateCourseRequest) (*models.Course, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create courses")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}

	teacherName := actor.Name
	if teacher, err := s.users.FindByID(ctx, actor.ID); err == nil {
		teacherName = teacher.Name
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internalError(err, "failed to load teacher")
	}

	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		Duration:    req.Duration,
		TeacherID:   actor.ID,
		TeacherName: teacherName,
		CreatedAt:   s.now(),
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, internalError(err, "failed to create course")
	}

	s.cache.invalidateCourses(ctx)
	s.cache.invalidateDashboards(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("teacher_id", actor.ID))
	return course, nil
}

// Enroll adds the calling student to a course. Enrolling again is a no-op
// that returns the original enrollment with created=false.
func (s *CourseService) Enroll(ctx context.Context, actor models.Actor, courseID string) (*models.Enrollment, bool, error) {
	if !actor.IsStudent() {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only students can enroll")
	}
	if _, err := loadCourse(ctx, s.courses, courseID); err != nil {
		return nil, false, err
	}

	enrollment, created, err := s.enrollments.Create(ctx, actor.ID, courseID, s.now())
	if err != nil {
		return nil, false, internalError(err, "failed to enroll")
	}
	if created {
		s.cache.invalidateDashboards(ctx)
	}
	return enrollment, created, nil
}

// MyCourses returns a teacher's own courses or a student's enrolled courses
// with progress.
func (s *CourseService) MyCourses(ctx context.Context, actor models.Actor) ([]dto.CourseWithProgress, error) {
	if actor.IsTeacher() {
		courses, err := s.courses.ListByTeacher(ctx, actor.ID)
		if err != nil {
			return nil, internalError(err, "failed to list courses")
		}
		result := make([]dto.CourseWithProgress, 0, len(courses))
		for _, c := range courses {
			result = append(result, dto.CourseWithProgress{Course: c})
		}
		return result, nil
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to list courses")
	}

	result := make([]dto.CourseWithProgress, 0, len(courses))
	for _, c := range courses {
		progress, err := s.progress.CourseProgress(ctx, actor.ID, c.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, dto.CourseWithProgress{Course: c, Progress: &progress})
	}
	return result, nil
}

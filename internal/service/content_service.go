package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// defaultAssignmentLessonDue applies when an assignment lesson has no due date.
const defaultAssignmentLessonDue = 14 * 24 * time.Hour

type moduleRepository interface {
	Create(ctx context.Context, module *models.Module) error
	FindByID(ctx context.Context, id string) (*models.Module, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Module, error)
	AppendLesson(ctx context.Context, moduleID string, lesson models.Lesson) (*models.Module, error)
	RemoveLesson(ctx context.Context, moduleID, lessonID string) (*models.Module, error)
}

type completionRepository interface {
	Create(ctx context.Context, completion *models.LessonCompletion) (*models.LessonCompletion, bool, error)
	ListByUserCourse(ctx context.Context, userID, courseID string) ([]models.LessonCompletion, error)
}

type assignmentCreator interface {
	Create(ctx context.Context, assignment *models.Assignment) error
}

type studentSubmissionLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
}

// MarkdownRenderer turns lesson text into HTML.
type MarkdownRenderer interface {
	Render(src string) (string, error)
}

// ContentServiceParams groups the dependencies of ContentService.
type ContentServiceParams struct {
	Courses     courseFinder
	Modules     moduleRepository
	Assignments assignmentCreator
	Enrollments enrollmentChecker
	Completions completionRepository
	Submissions studentSubmissionLister
	Markdown    MarkdownRenderer
	Cache       *CacheService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// ContentService manages modules and lessons and tracks lesson completion.
type ContentService struct {
	courses     courseFinder
	modules     moduleRepository
	assignments assignmentCreator
	enrollments enrollmentChecker
	completions completionRepository
	submissions studentSubmissionLister
	markdown    MarkdownRenderer
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewContentService constructs a ContentService.
func NewContentService(params ContentServiceParams) *ContentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &ContentService{
		courses:     params.Courses,
		modules:     params.Modules,
		assignments: params.Assignments,
		enrollments: params.Enrollments,
		completions: params.Completions,
		submissions: params.Submissions,
		markdown:    params.Markdown,
		cache:       params.Cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Modules returns a course's modules as seen by the actor.
func (s *ContentService) Modules(ctx context.Context, actor models.Actor, courseID string) ([]dto.ModuleView, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(ctx, s.enrollments, actor, course); err != nil {
		return nil, err
	}

	modules, err := s.modules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to list modules")
	}

	completed := map[string]struct{}{}
	submitted := map[string]struct{}{}
	if actor.IsStudent() {
		completions, err := s.completions.ListByUserCourse(ctx, actor.ID, courseID)
		if err != nil {
			return nil, internalError(err, "failed to load lesson completions")
		}
		for _, c := range completions {
			completed[c.LessonID] = struct{}{}
		}
		subs, err := s.submissions.ListByStudent(ctx, actor.ID)
		if err != nil {
			return nil, internalError(err, "failed to load submissions")
		}
		for _, sub := range subs {
			submitted[sub.AssignmentID] = struct{}{}
		}
	}

	views := make([]dto.ModuleView, 0, len(modules))
	for _, m := range modules {
		view := dto.ModuleView{
			ID:       m.ID,
			CourseID: m.CourseID,
			Title:    m.Title,
			Position: m.Position,
			Lessons:  make([]dto.LessonView, 0, len(m.Lessons)),
		}
		for _, lesson := range m.Lessons {
			lv := dto.LessonView{Lesson: lesson, IsCompleted: lessonDone(lesson, submitted, completed)}
			if lesson.Type == models.LessonText && s.markdown != nil {
				html, err := s.markdown.Render(lesson.Content)
				if err != nil {
					s.logger.Warn("failed to render lesson", zap.String("lesson_id", lesson.ID), zap.Error(err))
				} else {
					lv.ContentHTML = html
				}
			}
			view.Lessons = append(view.Lessons, lv)
		}
		views = append(views, view)
	}
	return views, nil
}

// CreateModule appends a module to a course.
func (s *ContentService) CreateModule(ctx context.Context, actor models.Actor, courseID string, req models.CreateModuleRequest) (*models.Module, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid module payload")
	}
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, course); err != nil {
		return nil, err
	}

	module := &models.Module{CourseID: course.ID, Title: req.Title, CreatedAt: s.now()}
	if err := s.modules.Create(ctx, module); err != nil {
		return nil, internalError(err, "failed to create module")
	}
	return module, nil
}

// CreateLesson appends a lesson to a module. Assignment lessons also create
// the assignment they point at.
func (s *ContentService) CreateLesson(ctx context.Context, actor models.Actor, courseID, moduleID string, req models.CreateLessonRequest) (*models.Lesson, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid lesson payload")
	}
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, course); err != nil {
		return nil, err
	}
	if _, err := s.loadModule(ctx, courseID, moduleID); err != nil {
		return nil, err
	}

	lesson := models.Lesson{ID: uuid.NewString(), Title: req.Title, Type: req.Type, Content: req.Content}
	var assignment *models.Assignment
	if req.Type == models.LessonAssignment {
		now := s.now()
		due := now.Add(defaultAssignmentLessonDue)
		if req.DueDate != nil {
			due = req.DueDate.UTC()
		}
		assignment = &models.Assignment{
			ID:          uuid.NewString(),
			CourseID:    courseID,
			Title:       req.Title,
			Description: req.Content,
			DueDate:     due,
			CreatedAt:   now,
		}
		lesson.Content = assignment.ID
	}

	// The lesson goes in first so a failed append never leaves an assignment
	// that no module points at.
	if _, err := s.modules.AppendLesson(ctx, moduleID, lesson); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, internalError(err, "failed to add lesson")
	}

	if assignment != nil {
		if err := s.assignments.Create(ctx, assignment); err != nil {
			if _, rmErr := s.modules.RemoveLesson(ctx, moduleID, lesson.ID); rmErr != nil {
				s.logger.Warn("failed to roll back assignment lesson",
					zap.String("module_id", moduleID),
					zap.String("lesson_id", lesson.ID),
					zap.Error(rmErr))
			}
			return nil, internalError(err, "failed to create assignment")
		}
		s.cache.invalidateDashboards(ctx)
	}
	return &lesson, nil
}

// MarkLessonComplete records that the calling student finished a lesson.
// Repeated calls keep the first completion.
func (s *ContentService) MarkLessonComplete(ctx context.Context, actor models.Actor, courseID, moduleID, lessonID string) (*models.LessonCompletion, error) {
	if !actor.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can complete lessons")
	}
	if _, err := loadCourse(ctx, s.courses, courseID); err != nil {
		return nil, err
	}
	if err := requireEnrolled(ctx, s.enrollments, actor, courseID); err != nil {
		return nil, err
	}
	module, err := s.loadModule(ctx, courseID, moduleID)
	if err != nil {
		return nil, err
	}

	var lesson *models.Lesson
	for i := range module.Lessons {
		if module.Lessons[i].ID == lessonID {
			lesson = &module.Lessons[i]
			break
		}
	}
	if lesson == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	if lesson.Type == models.LessonAssignment {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment lessons are completed by submitting the assignment")
	}

	completion, _, err := s.completions.Create(ctx, &models.LessonCompletion{
		UserID:      actor.ID,
		CourseID:    courseID,
		ModuleID:    moduleID,
		LessonID:    lessonID,
		CompletedAt: s.now(),
	})
	if err != nil {
		return nil, internalError(err, "failed to record completion")
	}
	return completion, nil
}

func (s *ContentService) loadModule(ctx context.Context, courseID, moduleID string) (*models.Module, error) {
	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, internalError(err, "failed to load module")
	}
	if module.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
	}
	return module, nil
}

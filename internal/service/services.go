package service

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/store"
	"github.com/noah-isme/lms-api/pkg/markdown"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// Deps carries what New needs to build the service graph.
type Deps struct {
	Driver         store.Driver
	Cache          *CacheService
	Metrics        *MetricsService
	Logger         *zap.Logger
	Auth           AuthConfig
	Attachments    AttachmentPolicy
	CourseCacheTTL time.Duration
	Dashboard      DashboardServiceConfig
	ReminderWindow time.Duration
	ExportFiles    fileStorage
	ExportSigner   *storage.SignedURLSigner
	Export         ExportConfig
}

// Services is the wired service graph over one store.
type Services struct {
	Auth          *AuthService
	Courses       *CourseService
	Content       *ContentService
	Assignments   *AssignmentService
	Progress      *ProgressService
	Dashboard     *DashboardService
	Notifications *NotificationService
	Reminders     *ReminderService
	Exports       *ExportService
}

// New builds every repository and service over deps.Driver.
func New(deps Deps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()

	users := repository.NewUserRepository(deps.Driver)
	courses := repository.NewCourseRepository(deps.Driver)
	modules := repository.NewModuleRepository(deps.Driver)
	assignments := repository.NewAssignmentRepository(deps.Driver)
	submissions := repository.NewSubmissionRepository(deps.Driver)
	enrollments := repository.NewEnrollmentRepository(deps.Driver)
	completions := repository.NewCompletionRepository(deps.Driver)
	notifications := repository.NewNotificationRepository(deps.Driver)

	s := &Services{}
	s.Auth = NewAuthService(users, validate, logger.Named("auth"), deps.Auth)
	s.Progress = NewProgressService(modules, completions, submissions, assignments)
	s.Notifications = NewNotificationService(notifications, users, deps.Metrics, logger.Named("notifications"))
	s.Courses = NewCourseService(CourseServiceParams{
		Courses:     courses,
		Enrollments: enrollments,
		Users:       users,
		Progress:    s.Progress,
		Cache:       deps.Cache,
		CacheTTL:    deps.CourseCacheTTL,
		Validator:   validate,
		Logger:      logger.Named("courses"),
	})
	s.Content = NewContentService(ContentServiceParams{
		Courses:     courses,
		Modules:     modules,
		Assignments: assignments,
		Enrollments: enrollments,
		Completions: completions,
		Submissions: submissions,
		Markdown:    markdown.New(),
		Cache:       deps.Cache,
		Validator:   validate,
		Logger:      logger.Named("content"),
	})
	s.Assignments = NewAssignmentService(AssignmentServiceParams{
		Courses:     courses,
		Assignments: assignments,
		Submissions: submissions,
		Enrollments: enrollments,
		Users:       users,
		Notifier:    s.Notifications,
		Grades:      s.Progress,
		Attachments: deps.Attachments,
		Cache:       deps.Cache,
		Metrics:     deps.Metrics,
		Validator:   validate,
		Logger:      logger.Named("assignments"),
	})
	s.Dashboard = NewDashboardService(DashboardServiceParams{
		Courses:     courses,
		Enrollments: enrollments,
		Assignments: assignments,
		Submissions: submissions,
		Users:       users,
		Cache:       deps.Cache,
		Logger:      logger.Named("dashboard"),
		Config:      deps.Dashboard,
	})
	s.Reminders = NewReminderService(enrollments, assignments, submissions, s.Notifications, deps.ReminderWindow, logger.Named("reminders"))
	if deps.ExportFiles != nil && deps.ExportSigner != nil {
		s.Exports = NewExportService(s.Assignments, deps.ExportFiles, deps.ExportSigner, deps.Export, deps.Metrics, logger.Named("exports"))
	}
	return s
}

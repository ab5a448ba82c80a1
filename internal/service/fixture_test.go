package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/store/memory"
	"github.com/noah-isme/lms-api/pkg/markdown"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// lmsEnv wires every service over one in-memory store.
type lmsEnv struct {
	clock *fakeClock

	users         *repository.UserRepository
	courseRepo    *repository.CourseRepository
	moduleRepo    *repository.ModuleRepository
	assignRepo    *repository.AssignmentRepository
	submitRepo    *repository.SubmissionRepository
	enrollRepo    *repository.EnrollmentRepository
	completeRepo  *repository.CompletionRepository
	notifyRepo    *repository.NotificationRepository
	metrics       *MetricsService
	progress      *ProgressService
	courses       *CourseService
	content       *ContentService
	assignments   *AssignmentService
	notifications *NotificationService
	reminders     *ReminderService
	dashboard     *DashboardService
}

func newLMSEnv(t *testing.T) *lmsEnv {
	t.Helper()
	driver := memory.New()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	env := &lmsEnv{
		clock:        clock,
		users:        repository.NewUserRepository(driver),
		courseRepo:   repository.NewCourseRepository(driver),
		moduleRepo:   repository.NewModuleRepository(driver),
		assignRepo:   repository.NewAssignmentRepository(driver),
		submitRepo:   repository.NewSubmissionRepository(driver),
		enrollRepo:   repository.NewEnrollmentRepository(driver),
		completeRepo: repository.NewCompletionRepository(driver),
		notifyRepo:   repository.NewNotificationRepository(driver),
		metrics:      NewMetricsService(),
	}

	env.progress = NewProgressService(env.moduleRepo, env.completeRepo, env.submitRepo, env.assignRepo)
	env.notifications = NewNotificationService(env.notifyRepo, env.users, env.metrics, nil)
	env.notifications.now = clock.Now

	env.courses = NewCourseService(CourseServiceParams{
		Courses:     env.courseRepo,
		Enrollments: env.enrollRepo,
		Users:       env.users,
		Progress:    env.progress,
	})
	env.courses.now = clock.Now

	env.content = NewContentService(ContentServiceParams{
		Courses:     env.courseRepo,
		Modules:     env.moduleRepo,
		Assignments: env.assignRepo,
		Enrollments: env.enrollRepo,
		Completions: env.completeRepo,
		Submissions: env.submitRepo,
		Markdown:    markdown.New(),
	})
	env.content.now = clock.Now

	env.assignments = NewAssignmentService(AssignmentServiceParams{
		Courses:     env.courseRepo,
		Assignments: env.assignRepo,
		Submissions: env.submitRepo,
		Enrollments: env.enrollRepo,
		Users:       env.users,
		Notifier:    env.notifications,
		Grades:      env.progress,
		Attachments: AttachmentPolicy{MaxBytes: 1024, Allowed: []string{"text/plain", "application/pdf"}},
		Metrics:     env.metrics,
	})
	env.assignments.now = clock.Now

	env.reminders = NewReminderService(env.enrollRepo, env.assignRepo, env.submitRepo, env.notifications, 24*time.Hour, nil)
	env.reminders.now = clock.Now

	env.dashboard = NewDashboardService(DashboardServiceParams{
		Courses:     env.courseRepo,
		Enrollments: env.enrollRepo,
		Assignments: env.assignRepo,
		Submissions: env.submitRepo,
		Users:       env.users,
	})
	env.dashboard.now = clock.Now

	return env
}

func (e *lmsEnv) user(t *testing.T, name string, role models.UserRole) models.Actor {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@school.test", Role: role, CreatedAt: e.clock.Now()}
	require.NoError(t, e.users.Create(context.Background(), u))
	return models.Actor{ID: u.ID, Role: role, Name: name}
}

func (e *lmsEnv) course(t *testing.T, teacher models.Actor, title string) *models.Course {
	t.Helper()
	c, err := e.courses.Create(context.Background(), teacher, models.CreateCourseRequest{Title: title})
	require.NoError(t, err)
	return c
}

func (e *lmsEnv) assignment(t *testing.T, teacher models.Actor, courseID, title string, due time.Time) *models.Assignment {
	t.Helper()
	a, err := e.assignments.Create(context.Background(), teacher, models.CreateAssignmentRequest{
		CourseID: courseID,
		Title:    title,
		DueDate:  due,
	})
	require.NoError(t, err)
	return a
}

func (e *lmsEnv) enroll(t *testing.T, student models.Actor, courseID string) {
	t.Helper()
	_, _, err := e.courses.Enroll(context.Background(), student, courseID)
	require.NoError(t, err)
}

func (e *lmsEnv) submit(t *testing.T, student models.Actor, assignmentID, content string) *models.Submission {
	t.Helper()
	sub, err := e.assignments.Submit(context.Background(), student, assignmentID, models.SubmitRequest{Content: content})
	require.NoError(t, err)
	return sub
}

func (e *lmsEnv) grade(t *testing.T, teacher models.Actor, submissionID string, grade int, feedback string) *models.Submission {
	t.Helper()
	sub, err := e.assignments.Grade(context.Background(), teacher, submissionID, models.GradeRequest{Grade: &grade, Feedback: feedback})
	require.NoError(t, err)
	return sub
}

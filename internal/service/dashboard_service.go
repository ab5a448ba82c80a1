package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type dashboardCourseLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type dashboardEnrollmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Enrollment, error)
}

type dashboardAssignmentLister interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Assignment, error)
}

type dashboardSubmissionLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
	ListByAssignments(ctx context.Context, assignmentIDs []string) ([]models.Submission, error)
}

type dashboardUserLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL       time.Duration
	UpcomingWindow time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Courses     dashboardCourseLister
	Enrollments dashboardEnrollmentLister
	Assignments dashboardAssignmentLister
	Submissions dashboardSubmissionLister
	Users       dashboardUserLookup
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// DashboardService composes the per-role home page summaries.
type DashboardService struct {
	courses     dashboardCourseLister
	enrollments dashboardEnrollmentLister
	assignments dashboardAssignmentLister
	submissions dashboardSubmissionLister
	users       dashboardUserLookup
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.UpcomingWindow <= 0 {
		cfg.UpcomingWindow = 7 * 24 * time.Hour
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		courses:     params.Courses,
		enrollments: params.Enrollments,
		assignments: params.Assignments,
		submissions: params.Submissions,
		users:       params.Users,
		cache:       params.Cache,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		cfg:         cfg,
	}
}

// ForActor returns the dashboard matching the actor's role and whether it
// came from cache.
func (s *DashboardService) ForActor(ctx context.Context, actor models.Actor) (interface{}, bool, error) {
	switch actor.Role {
	case models.RoleStudent:
		return s.Student(ctx, actor)
	case models.RoleTeacher:
		return s.Teacher(ctx, actor)
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

// Student summarises enrolled courses, upcoming unsubmitted work and the
// average grade.
func (s *DashboardService) Student(ctx context.Context, actor models.Actor) (*dto.StudentDashboardResponse, bool, error) {
	if !actor.IsStudent() {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "student dashboard requires student role")
	}
	key := dashboardCacheKey(actor)
	var cached dto.StudentDashboardResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, false, internalError(err, "failed to list enrollments")
	}
	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	courses, err := s.courses.ListByIDs(ctx, courseIDs)
	if err != nil {
		return nil, false, internalError(err, "failed to list courses")
	}
	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	assignments, err := s.assignments.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, false, internalError(err, "failed to list assignments")
	}
	submissions, err := s.submissions.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, false, internalError(err, "failed to list submissions")
	}
	submitted := make(map[string]struct{}, len(submissions))
	for _, sub := range submissions {
		submitted[sub.AssignmentID] = struct{}{}
	}

	now := s.now()
	horizon := now.Add(s.cfg.UpcomingWindow)
	upcoming := make([]dto.UpcomingDeadline, 0)
	for _, a := range assignments {
		if a.DueDate.Before(now) || a.DueDate.After(horizon) {
			continue
		}
		if _, done := submitted[a.ID]; done {
			continue
		}
		upcoming = append(upcoming, dto.UpcomingDeadline{
			AssignmentID: a.ID,
			Title:        a.Title,
			CourseID:     a.CourseID,
			CourseTitle:  titles[a.CourseID],
			DueDate:      a.DueDate,
		})
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].DueDate.Before(upcoming[j].DueDate) })

	resp := &dto.StudentDashboardResponse{
		EnrolledCourses:   len(enrollments),
		UpcomingDeadlines: upcoming,
		AverageGrade:      AverageGrade(submissions),
		GeneratedAt:       now,
	}
	s.store(ctx, key, resp)
	return resp, false, nil
}

// Teacher summarises owned courses, their students and ungraded work.
func (s *DashboardService) Teacher(ctx context.Context, actor models.Actor) (*dto.TeacherDashboardResponse, bool, error) {
	if !actor.IsTeacher() {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "teacher dashboard requires teacher role")
	}
	key := dashboardCacheKey(actor)
	var cached dto.TeacherDashboardResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	courses, err := s.courses.ListByTeacher(ctx, actor.ID)
	if err != nil {
		return nil, false, internalError(err, "failed to list courses")
	}
	courseIDs := make([]string, 0, len(courses))
	for _, c := range courses {
		courseIDs = append(courseIDs, c.ID)
	}
	enrollments, err := s.enrollments.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, false, internalError(err, "failed to list enrollments")
	}
	students := make(map[string]struct{})
	for _, e := range enrollments {
		students[e.StudentID] = struct{}{}
	}

	assignments, err := s.assignments.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, false, internalError(err, "failed to list assignments")
	}
	byID := make(map[string]models.Assignment, len(assignments))
	assignmentIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = a
		assignmentIDs = append(assignmentIDs, a.ID)
	}
	submissions, err := s.submissions.ListByAssignments(ctx, assignmentIDs)
	if err != nil {
		return nil, false, internalError(err, "failed to list submissions")
	}

	pendingStudentIDs := make([]string, 0)
	pendingSubs := make([]models.Submission, 0)
	for _, sub := range submissions {
		if sub.Status == models.SubmissionGraded {
			continue
		}
		pendingSubs = append(pendingSubs, sub)
		pendingStudentIDs = append(pendingStudentIDs, sub.StudentID)
	}
	names, err := s.users.FindByIDs(ctx, pendingStudentIDs)
	if err != nil {
		return nil, false, internalError(err, "failed to load students")
	}

	pending := make([]dto.PendingSubmission, 0, len(pendingSubs))
	for _, sub := range pendingSubs {
		pending = append(pending, dto.PendingSubmission{
			SubmissionID:    sub.ID,
			AssignmentID:    sub.AssignmentID,
			AssignmentTitle: byID[sub.AssignmentID].Title,
			CourseID:        sub.CourseID,
			StudentID:       sub.StudentID,
			StudentName:     names[sub.StudentID].Name,
			Status:          string(sub.Status),
			SubmittedAt:     sub.SubmittedAt,
		})
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].SubmittedAt.After(pending[j].SubmittedAt) })

	resp := &dto.TeacherDashboardResponse{
		Courses:            len(courses),
		Students:           len(students),
		PendingSubmissions: pending,
		GeneratedAt:        s.now(),
	}
	s.store(ctx, key, resp)
	return resp, false, nil
}

func (s *DashboardService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Debug("dashboard not cached", zap.String("key", key), zap.Error(err))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/store"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type reminderEnrollmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListAll(ctx context.Context) ([]models.Enrollment, error)
}

type reminderAssignmentLister interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Assignment, error)
}

type reminderSubmissionLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
}

// ReminderService warns students about unsubmitted work that is due soon.
type ReminderService struct {
	enrollments reminderEnrollmentLister
	assignments reminderAssignmentLister
	submissions reminderSubmissionLister
	notifier    notifier
	window      time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewReminderService constructs a ReminderService. window defaults to 24h.
func NewReminderService(enrollments reminderEnrollmentLister, assignments reminderAssignmentLister, submissions reminderSubmissionLister, notifier notifier, window time.Duration, logger *zap.Logger) *ReminderService {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		enrollments: enrollments,
		assignments: assignments,
		submissions: submissions,
		notifier:    notifier,
		window:      window,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CheckMine runs the deadline check for the calling student.
func (s *ReminderService) CheckMine(ctx context.Context, actor models.Actor) ([]models.Notification, error) {
	if !actor.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students receive deadline reminders")
	}
	return s.CheckDeadlines(ctx, actor.ID, s.now())
}

// CheckDeadlines creates one reminder per assignment due in (now, now+window]
// that the student has not submitted. Reminders that already exist are not
// recreated; only newly created ones are returned.
func (s *ReminderService) CheckDeadlines(ctx context.Context, studentID string, now time.Time) ([]models.Notification, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	if len(enrollments) == 0 {
		return []models.Notification{}, nil
	}
	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	assignments, err := s.assignments.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, internalError(err, "failed to list assignments")
	}
	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to list submissions")
	}
	submitted := make(map[string]struct{}, len(submissions))
	for _, sub := range submissions {
		submitted[sub.AssignmentID] = struct{}{}
	}

	horizon := now.Add(s.window)
	created := make([]models.Notification, 0)
	for _, a := range assignments {
		if !a.DueDate.After(now) || a.DueDate.After(horizon) {
			continue
		}
		if _, done := submitted[a.ID]; done {
			continue
		}
		n := &models.Notification{
			ID:           repository.ReminderID(studentID, a.ID),
			UserID:       studentID,
			Type:         models.NotificationDeadlineReminder,
			Message:      fmt.Sprintf("Reminder: \"%s\" is due %s.", a.Title, dueIn(a.DueDate.Sub(now))),
			Link:         assignmentLink(a.CourseID, a.ID),
			AssignmentID: a.ID,
			CreatedAt:    now,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return created, err
		}
		created = append(created, *n)
	}
	return created, nil
}

// Sweep runs CheckDeadlines for every enrolled student and returns the number
// of reminders created.
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	enrollments, err := s.enrollments.ListAll(ctx)
	if err != nil {
		return 0, internalError(err, "failed to list enrollments")
	}
	now := s.now()
	seen := make(map[string]struct{})
	total := 0
	for _, e := range enrollments {
		if _, ok := seen[e.StudentID]; ok {
			continue
		}
		seen[e.StudentID] = struct{}{}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		created, err := s.CheckDeadlines(ctx, e.StudentID, now)
		total += len(created)
		if err != nil {
			s.logger.Warn("deadline check failed", zap.String("student_id", e.StudentID), zap.Error(err))
		}
	}
	if total > 0 {
		s.logger.Info("deadline reminders created", zap.Int("count", total), zap.Int("students", len(seen)))
	}
	return total, nil
}

// dueIn names the whole hours left, so the label never overstates the time.
func dueIn(d time.Duration) string {
	hours := int(d / time.Hour)
	switch {
	case hours < 1:
		return "in less than an hour"
	case hours == 1:
		return "in 1 hour"
	default:
		return fmt.Sprintf("in %d hours", hours)
	}
}

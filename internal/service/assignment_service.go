package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
}

type submissionRepository interface {
	Upsert(ctx context.Context, assignmentID, studentID string, fn func(existing *models.Submission) (*models.Submission, error)) (*models.Submission, error)
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	Update(ctx context.Context, id string, fn func(*models.Submission) error) (*models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
}

type rosterEnrollmentLister interface {
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Enrollment, error)
}

type userBatchLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

type notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

type gradeCalculator interface {
	OverallCourseGrade(ctx context.Context, studentID, courseID string) (*int, error)
}

// AssignmentServiceParams groups the dependencies of AssignmentService.
type AssignmentServiceParams struct {
	Courses     courseFinder
	Assignments assignmentRepository
	Submissions submissionRepository
	Enrollments rosterEnrollmentLister
	Users       userBatchLookup
	Notifier    notifier
	Grades      gradeCalculator
	Attachments AttachmentPolicy
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// AssignmentService covers the assignment, submission and grading flow.
type AssignmentService struct {
	courses     courseFinder
	assignments assignmentRepository
	submissions submissionRepository
	enrollments rosterEnrollmentLister
	users       userBatchLookup
	notifier    notifier
	grades      gradeCalculator
	attachments AttachmentPolicy
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(params AssignmentServiceParams) *AssignmentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{
		courses:     params.Courses,
		assignments: params.Assignments,
		submissions: params.Submissions,
		enrollments: params.Enrollments,
		users:       params.Users,
		notifier:    params.Notifier,
		grades:      params.Grades,
		attachments: params.Attachments,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create adds an assignment to a course owned by the actor.
func (s *AssignmentService) Create(ctx context.Context, actor models.Actor, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	course, err := loadCourse(ctx, s.courses, req.CourseID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, course); err != nil {
		return nil, err
	}
	if err := s.attachments.Normalize(req.Attachment); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		CourseID:    course.ID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.UTC(),
		Attachment:  req.Attachment,
		CreatedAt:   s.now(),
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, internalError(err, "failed to create assignment")
	}
	s.cache.invalidateDashboards(ctx)
	return assignment, nil
}

// Get returns an assignment visible to the actor.
func (s *AssignmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Assignment, error) {
	assignment, course, err := s.loadAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireMember(ctx, s.enrollments, actor, course); err != nil {
		return nil, err
	}
	return assignment, nil
}

// ListForCourse returns a course's assignments by ascending due date.
func (s *AssignmentService) ListForCourse(ctx context.Context, actor models.Actor, courseID string) ([]models.Assignment, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(ctx, s.enrollments, actor, course); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to list assignments")
	}
	return assignments, nil
}

// GetSubmission returns the student's submission or nil when there is none.
// Only the student themself or the course teacher may look.
func (s *AssignmentService) GetSubmission(ctx context.Context, actor models.Actor, assignmentID, studentID string) (*models.Submission, error) {
	if studentID == "" {
		studentID = actor.ID
	}
	_, course, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !(actor.IsStudent() && actor.ID == studentID) {
		if err := requireOwner(actor, course); err != nil {
			return nil, err
		}
	}

	sub, err := s.submissions.FindByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, internalError(err, "failed to load submission")
	}
	return sub, nil
}

// Submit creates or replaces the actor's submission. A resubmission resets
// any previous grade.
func (s *AssignmentService) Submit(ctx context.Context, actor models.Actor, assignmentID string, req models.SubmitRequest) (*models.Submission, error) {
	if !actor.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit assignments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	if strings.TrimSpace(req.Content) == "" && req.Attachment == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission needs content or an attachment")
	}
	assignment, course, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := requireEnrolled(ctx, s.enrollments, actor, course.ID); err != nil {
		return nil, err
	}
	if err := s.attachments.Normalize(req.Attachment); err != nil {
		return nil, err
	}

	submittedAt := s.now()
	status := models.SubmissionSubmitted
	if submittedAt.After(assignment.DueDate) {
		status = models.SubmissionLate
	}
	sub, err := s.submissions.Upsert(ctx, assignmentID, actor.ID, func(*models.Submission) (*models.Submission, error) {
		return &models.Submission{
			CourseID:    course.ID,
			Content:     req.Content,
			Attachment:  req.Attachment,
			SubmittedAt: submittedAt,
			Status:      status,
		}, nil
	})
	if err != nil {
		return nil, internalError(err, "failed to save submission")
	}
	s.metrics.RecordSubmission(sub.Status)
	s.cache.invalidateDashboards(ctx)

	studentName := actor.Name
	if student, err := s.users.FindByID(ctx, actor.ID); err == nil {
		studentName = student.Name
	}
	s.notify(ctx, &models.Notification{
		UserID:       course.TeacherID,
		Type:         models.NotificationNewSubmission,
		Message:      fmt.Sprintf("%s submitted an assignment for \"%s\".", studentName, assignment.Title),
		Link:         assignmentLink(course.ID, assignment.ID),
		AssignmentID: assignment.ID,
	})
	return sub, nil
}

// SubmissionsForAssignment lists one row per enrolled student, sorted by
// name, with the student's submission when present.
func (s *AssignmentService) SubmissionsForAssignment(ctx context.Context, actor models.Actor, assignmentID string) ([]dto.GradeRow, error) {
	_, course, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, course); err != nil {
		return nil, err
	}

	enrollments, err := s.enrollments.ListByCourses(ctx, []string{course.ID})
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	studentIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		studentIDs = append(studentIDs, e.StudentID)
	}
	students, err := s.users.FindByIDs(ctx, studentIDs)
	if err != nil {
		return nil, internalError(err, "failed to load students")
	}
	subs, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, internalError(err, "failed to list submissions")
	}
	byStudent := make(map[string]models.Submission, len(subs))
	for _, sub := range subs {
		byStudent[sub.StudentID] = sub
	}

	rows := make([]dto.GradeRow, 0, len(studentIDs))
	for _, id := range studentIDs {
		row := dto.GradeRow{StudentID: id}
		if student, ok := students[id]; ok {
			row.StudentName = student.Name
			row.StudentEmail = student.Email
		}
		if sub, ok := byStudent[id]; ok {
			sub := sub
			row.Submission = &sub
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].StudentName), strings.ToLower(rows[j].StudentName)
		if a == b {
			return rows[i].StudentID < rows[j].StudentID
		}
		return a < b
	})
	return rows, nil
}

// Grade records a grade and feedback on a submission in the actor's course.
func (s *AssignmentService) Grade(ctx context.Context, actor models.Actor, submissionID string, req models.GradeRequest) (*models.Submission, error) {
	if !actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can grade")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "grade must be between 0 and 100")
	}

	existing, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, internalError(err, "failed to load submission")
	}
	assignment, course, err := s.loadAssignment(ctx, existing.AssignmentID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, course); err != nil {
		return nil, err
	}

	grade := *req.Grade
	var feedback *string
	if text := strings.TrimSpace(req.Feedback); text != "" {
		feedback = &text
	}
	gradedAt := s.now()
	sub, err := s.submissions.Update(ctx, submissionID, func(sub *models.Submission) error {
		sub.Grade = &grade
		sub.Feedback = feedback
		sub.Status = models.SubmissionGraded
		sub.GradedAt = &gradedAt
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, internalError(err, "failed to grade submission")
	}
	s.metrics.RecordSubmission(sub.Status)
	s.cache.invalidateDashboards(ctx)

	s.notify(ctx, &models.Notification{
		UserID:       sub.StudentID,
		Type:         models.NotificationAssignmentGraded,
		Message:      fmt.Sprintf("Your submission for \"%s\" has been graded.", assignment.Title),
		Link:         assignmentLink(course.ID, assignment.ID),
		AssignmentID: assignment.ID,
	})
	return sub, nil
}

// OverallCourseGrade returns the student's mean grade in a course, nil when
// nothing is graded. Only the student themself or the course teacher may look.
func (s *AssignmentService) OverallCourseGrade(ctx context.Context, actor models.Actor, courseID, studentID string) (*dto.CourseGrade, error) {
	if studentID == "" {
		studentID = actor.ID
	}
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if !(actor.IsStudent() && actor.ID == studentID) {
		if err := requireOwner(actor, course); err != nil {
			return nil, err
		}
	}
	grade, err := s.grades.OverallCourseGrade(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	return &dto.CourseGrade{CourseID: courseID, StudentID: studentID, Grade: grade}, nil
}

func (s *AssignmentService) loadAssignment(ctx context.Context, id string) (*models.Assignment, *models.Course, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, nil, internalError(err, "failed to load assignment")
	}
	course, err := loadCourse(ctx, s.courses, assignment.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return assignment, course, nil
}

func (s *AssignmentService) notify(ctx context.Context, n *models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("failed to create notification",
			zap.String("type", string(n.Type)), zap.String("user_id", n.UserID), zap.Error(err))
	}
}

func assignmentLink(courseID, assignmentID string) string {
	return "/courses/" + courseID + "/assignments/" + assignmentID
}

package service

import (
	"context"
	"math"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
)

// ComputeProgress counts finished lessons across modules. An assignment lesson
// is finished once the student has submitted the assignment it references;
// every other lesson is finished once it has a completion record.
func ComputeProgress(modules []models.Module, submittedAssignmentIDs, completedLessonIDs map[string]struct{}) dto.Progress {
	var progress dto.Progress
	for _, module := range modules {
		for _, lesson := range module.Lessons {
			progress.Total++
			if lessonDone(lesson, submittedAssignmentIDs, completedLessonIDs) {
				progress.Completed++
			}
		}
	}
	if progress.Total > 0 {
		progress.Percent = int(math.Round(float64(progress.Completed) * 100 / float64(progress.Total)))
	}
	return progress
}

func lessonDone(lesson models.Lesson, submitted, completed map[string]struct{}) bool {
	if lesson.Type == models.LessonAssignment {
		_, ok := submitted[lesson.Content]
		return ok
	}
	_, ok := completed[lesson.ID]
	return ok
}

// OverallGrade is the rounded mean of the graded submissions that belong to
// the given assignments, or nil when there are none.
func OverallGrade(submissions []models.Submission, courseAssignmentIDs map[string]struct{}) *int {
	grades := make([]int, 0, len(submissions))
	for _, sub := range submissions {
		if _, ok := courseAssignmentIDs[sub.AssignmentID]; !ok {
			continue
		}
		if sub.Status == models.SubmissionGraded && sub.Grade != nil {
			grades = append(grades, *sub.Grade)
		}
	}
	return roundedMean(grades)
}

// AverageGrade is the rounded mean over every graded submission.
func AverageGrade(submissions []models.Submission) *int {
	grades := make([]int, 0, len(submissions))
	for _, sub := range submissions {
		if sub.Status == models.SubmissionGraded && sub.Grade != nil {
			grades = append(grades, *sub.Grade)
		}
	}
	return roundedMean(grades)
}

func roundedMean(values []int) *int {
	if len(values) == 0 {
		return nil
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	mean := int(math.Round(float64(sum) / float64(len(values))))
	return &mean
}

type progressModuleLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Module, error)
}

type progressCompletionLister interface {
	ListByUserCourse(ctx context.Context, userID, courseID string) ([]models.LessonCompletion, error)
}

type progressSubmissionLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
}

type progressAssignmentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
}

// ProgressService loads the records the derivations above need.
type ProgressService struct {
	modules     progressModuleLister
	completions progressCompletionLister
	submissions progressSubmissionLister
	assignments progressAssignmentLister
}

// NewProgressService constructs a ProgressService.
func NewProgressService(modules progressModuleLister, completions progressCompletionLister, submissions progressSubmissionLister, assignments progressAssignmentLister) *ProgressService {
	return &ProgressService{modules: modules, completions: completions, submissions: submissions, assignments: assignments}
}

// CourseProgress reports a student's progress through one course.
func (s *ProgressService) CourseProgress(ctx context.Context, studentID, courseID string) (dto.Progress, error) {
	modules, err := s.modules.ListByCourse(ctx, courseID)
	if err != nil {
		return dto.Progress{}, internalError(err, "failed to load modules")
	}
	completions, err := s.completions.ListByUserCourse(ctx, studentID, courseID)
	if err != nil {
		return dto.Progress{}, internalError(err, "failed to load lesson completions")
	}
	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return dto.Progress{}, internalError(err, "failed to load submissions")
	}

	completed := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		completed[c.LessonID] = struct{}{}
	}
	submitted := make(map[string]struct{}, len(submissions))
	for _, sub := range submissions {
		if sub.CourseID == courseID {
			submitted[sub.AssignmentID] = struct{}{}
		}
	}
	return ComputeProgress(modules, submitted, completed), nil
}

// OverallCourseGrade averages a student's graded submissions in one course.
func (s *ProgressService) OverallCourseGrade(ctx context.Context, studentID, courseID string) (*int, error) {
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to load assignments")
	}
	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load submissions")
	}
	ids := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		ids[a.ID] = struct{}{}
	}
	return OverallGrade(submissions, ids), nil
}

package service

import (
	"context"
	"errors"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentChecker interface {
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
}

func loadCourse(ctx context.Context, courses courseFinder, id string) (*models.Course, error) {
	course, err := courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	return course, nil
}

// requireOwner allows only the teacher who owns the course.
func requireOwner(actor models.Actor, course *models.Course) error {
	if !actor.IsTeacher() || course.TeacherID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the course teacher can do this")
	}
	return nil
}

// requireEnrolled allows only students enrolled in the course.
func requireEnrolled(ctx context.Context, enrollments enrollmentChecker, actor models.Actor, courseID string) error {
	if !actor.IsStudent() {
		return appErrors.Clone(appErrors.ErrForbidden, "only students can do this")
	}
	ok, err := enrollments.Exists(ctx, actor.ID, courseID)
	if err != nil {
		return internalError(err, "failed to check enrollment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
	}
	return nil
}

// requireMember allows the owning teacher or an enrolled student.
func requireMember(ctx context.Context, enrollments enrollmentChecker, actor models.Actor, course *models.Course) error {
	if actor.IsTeacher() {
		return requireOwner(actor, course)
	}
	return requireEnrolled(ctx, enrollments, actor, course.ID)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

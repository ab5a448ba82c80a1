package repository

import (
	"strings"

	"github.com/google/uuid"
)

// naturalKeyNamespace scopes the name-based ids derived below.
var naturalKeyNamespace = uuid.MustParse("6f1c2a7e-4b7d-4d8e-9a35-2f0c8e1b5d42")

func naturalID(kind string, parts ...string) string {
	name := kind + "\x00" + strings.Join(parts, "\x00")
	return uuid.NewSHA1(naturalKeyNamespace, []byte(name)).String()
}

// EnrollmentID is the stable id of a (student, course) enrollment.
func EnrollmentID(studentID, courseID string) string {
	return naturalID("enrollment", studentID, courseID)
}

// SubmissionID is the stable id of a (assignment, student) submission.
func SubmissionID(assignmentID, studentID string) string {
	return naturalID("submission", assignmentID, studentID)
}

// CompletionID is the stable id of a (user, lesson) completion.
func CompletionID(userID, lessonID string) string {
	return naturalID("completion", userID, lessonID)
}

// ReminderID is the stable id of a deadline reminder for (user, assignment).
func ReminderID(userID, assignmentID string) string {
	return naturalID("deadline-reminder", userID, assignmentID)
}

func newID() string {
	return uuid.NewString()
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

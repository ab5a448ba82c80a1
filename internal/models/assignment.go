package models

import "time"

// SubmissionStatus tracks where a submission is in the grading flow.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionLate      SubmissionStatus = "LATE"
	SubmissionGraded    SubmissionStatus = "GRADED"
)

// Attachment is an inline file carried as base64 text.
type Attachment struct {
	Name     string `json:"name" validate:"required,max=255"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data" validate:"required,base64"`
}

// Assignment is graded work attached to a course.
type Assignment struct {
	ID          string      `json:"id"`
	CourseID    string      `json:"course_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueDate     time.Time   `json:"due_date"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Submission is a student's answer to an assignment. There is at most one per
// (assignment, student); Grade is set exactly when Status is GRADED.
type Submission struct {
	ID           string           `json:"id"`
	AssignmentID string           `json:"assignment_id"`
	CourseID     string           `json:"course_id"`
	StudentID    string           `json:"student_id"`
	Content      string           `json:"content"`
	Attachment   *Attachment      `json:"attachment,omitempty"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	Status       SubmissionStatus `json:"status"`
	Grade        *int             `json:"grade"`
	Feedback     *string          `json:"feedback"`
	GradedAt     *time.Time       `json:"graded_at,omitempty"`
}

// CreateAssignmentRequest is the payload for creating an assignment.
type CreateAssignmentRequest struct {
	CourseID    string      `json:"course_id" validate:"required"`
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=20000"`
	DueDate     time.Time   `json:"due_date" validate:"required"`
	Attachment  *Attachment `json:"attachment"`
}

// SubmitRequest is the payload for submitting work.
type SubmitRequest struct {
	Content    string      `json:"content" validate:"max=100000"`
	Attachment *Attachment `json:"attachment"`
}

// GradeRequest is the payload for grading a submission.
type GradeRequest struct {
	Grade    *int   `json:"grade" validate:"required,gte=0,lte=100"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

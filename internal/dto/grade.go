package dto

import "github.com/noah-isme/lms-api/internal/models"

// GradeRow is one enrolled student in an assignment's gradebook. Submission
// is nil when the student has not submitted.
type GradeRow struct {
	StudentID    string             `json:"studentId"`
	StudentName  string             `json:"studentName"`
	StudentEmail string             `json:"studentEmail"`
	Submission   *models.Submission `json:"submission"`
}

// CourseGrade is a student's overall grade for a course.
type CourseGrade struct {
	CourseID  string `json:"courseId"`
	StudentID string `json:"studentId"`
	Grade     *int   `json:"grade"`
}

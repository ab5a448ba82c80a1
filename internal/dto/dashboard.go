package dto

import "time"

// StudentDashboardResponse summarises a student's workload.
type StudentDashboardResponse struct {
	EnrolledCourses   int                `json:"enrolledCourses"`
	UpcomingDeadlines []UpcomingDeadline `json:"upcomingDeadlines"`
	AverageGrade      *int               `json:"averageGrade"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// UpcomingDeadline is an unsubmitted assignment due soon.
type UpcomingDeadline struct {
	AssignmentID string    `json:"assignmentId"`
	Title        string    `json:"title"`
	CourseID     string    `json:"courseId"`
	CourseTitle  string    `json:"courseTitle"`
	DueDate      time.Time `json:"dueDate"`
}

// TeacherDashboardResponse summarises a teacher's courses.
type TeacherDashboardResponse struct {
	Courses            int                 `json:"courses"`
	Students           int                 `json:"students"`
	PendingSubmissions []PendingSubmission `json:"pendingSubmissions"`
	GeneratedAt        time.Time           `json:"generatedAt"`
}

// PendingSubmission is an ungraded submission awaiting the teacher.
type PendingSubmission struct {
	SubmissionID    string    `json:"submissionId"`
	AssignmentID    string    `json:"assignmentId"`
	AssignmentTitle string    `json:"assignmentTitle"`
	CourseID        string    `json:"courseId"`
	StudentID       string    `json:"studentId"`
	StudentName     string    `json:"studentName"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

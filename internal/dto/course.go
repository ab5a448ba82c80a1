package dto

import "github.com/noah-isme/lms-api/internal/models"

// Progress reports how much of a course a student has completed.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// CourseWithProgress is a course entry in "my courses". Progress is only
// populated for students.
type CourseWithProgress struct {
	models.Course
	Progress *Progress `json:"progress,omitempty"`
}

// ModuleView is a module with completion flags for the viewer.
type ModuleView struct {
	ID       string       `json:"id"`
	CourseID string       `json:"courseId"`
	Title    string       `json:"title"`
	Position int          `json:"position"`
	Lessons  []LessonView `json:"lessons"`
}

// LessonView is a lesson as seen by one user. ContentHTML is set for text lessons.
type LessonView struct {
	models.Lesson
	ContentHTML string `json:"contentHtml,omitempty"`
	IsCompleted bool   `json:"isCompleted"`
}

package models

import "time"

// LessonType enumerates lesson kinds.
type LessonType string

const (
	LessonText       LessonType = "text"
	LessonVideo      LessonType = "video"
	LessonQuiz       LessonType = "quiz"
	LessonAssignment LessonType = "assignment"
)

// Module groups ordered lessons inside a course.
type Module struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	Lessons   []Lesson  `json:"lessons"`
	CreatedAt time.Time `json:"created_at"`
}

// Lesson is a unit of content. For assignment lessons Content holds the
// assignment id.
type Lesson struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Type    LessonType `json:"type"`
	Content string     `json:"content"`
}

// LessonCompletion records that a user viewed a lesson.
type LessonCompletion struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CourseID    string    `json:"course_id"`
	ModuleID    string    `json:"module_id"`
	LessonID    string    `json:"lesson_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// CreateModuleRequest is the payload for adding a module to a course.
type CreateModuleRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// CreateLessonRequest is the payload for adding a lesson to a module. DueDate
// only applies to assignment lessons.
type CreateLessonRequest struct {
	Title   string     `json:"title" validate:"required,max=200"`
	Type    LessonType `json:"type" validate:"required,oneof=text video quiz assignment"`
	Content string     `json:"content" validate:"max=100000"`
	DueDate *time.Time `json:"due_date"`
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func TestContentServiceModulesView(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	student := env.user(t, "sam", models.RoleStudent)
	course := env.course(t, teacher, "Algebra")

	first, err := env.content.CreateModule(ctx, teacher, course.ID, models.CreateModuleRequest{Title: "Basics"})
	require.NoError(t, err)
	second, err := env.content.CreateModule(ctx, teacher, course.ID, models.CreateModuleRequest{Title: "Advanced"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)

	text, err := env.content.CreateLesson(ctx, teacher, course.ID, first.ID, models.CreateLessonRequest{Title: "Read", Type: models.LessonText, Content: "**bold**"})
	require.NoError(t, err)
	_, err = env.content.CreateLesson(ctx, teacher, course.ID, first.ID, models.CreateLessonRequest{Title: "Watch", Type: models.LessonVideo, Content: "https://video.test"})
	require.NoError(t, err)

	env.enroll(t, student, course.ID)
	_, err = env.content.MarkLessonComplete(ctx, student, course.ID, first.ID, text.ID)
	require.NoError(t, err)

	views, err := env.content.Modules(ctx, student, course.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Basics", views[0].Title)
	require.Len(t, views[0].Lessons, 2)
	assert.True(t, views[0].Lessons[0].IsCompleted)
	assert.Contains(t, views[0].Lessons[0].ContentHTML, "<strong>bold</strong>")
	assert.False(t, views[0].Lessons[1].IsCompleted)
	assert.Empty(t, views[0].Lessons[1].ContentHTML)
	assert.Empty(t, views[1].Lessons)

	teacherView, err := env.content.Modules(ctx, teacher, course.ID)
	require.NoError(t, err)
	assert.False(t, teacherView[0].Lessons[0].IsCompleted)
}

func TestContentServiceModulesAccess(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	other := env.user(t, "alan", models.RoleTeacher)
	outsider := env.user(t, "sam", models.RoleStudent)
	course := env.course(t, teacher, "Algebra")

	_, err := env.content.Modules(ctx, outsider, course.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = env.content.Modules(ctx, other, course.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = env.content.CreateModule(ctx, other, course.ID, models.CreateModuleRequest{Title: "Mine now"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = env.content.Modules(ctx, teacher, "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestContentServiceAssignmentLessonCreatesAssignment(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	course := env.course(t, teacher, "Algebra")
	module, err := env.content.CreateModule(ctx, teacher, course.ID, models.CreateModuleRequest{Title: "Week 1"})
	require.NoError(t, err)

	lesson, err := env.content.CreateLesson(ctx, teacher, course.ID, module.ID, models.CreateLessonRequest{
		Title:   "Homework",
		Type:    models.LessonAssignment,
		Content: "Solve 1-10",
	})
	require.NoError(t, err)

	assignment, err := env.assignRepo.FindByID(ctx, lesson.Content)
	require.NoError(t, err)
	assert.Equal(t, "Homework", assignment.Title)
	assert.Equal(t, "Solve 1-10", assignment.Description)
	assert.Equal(t, course.ID, assignment.CourseID)
	assert.True(t, assignment.DueDate.Equal(env.clock.Now().Add(14*24*time.Hour)))

	due := env.clock.Now().Add(48 * time.Hour)
	lesson, err = env.content.CreateLesson(ctx, teacher, course.ID, module.ID, models.CreateLessonRequest{
		Title:   "Quiz prep",
		Type:    models.LessonAssignment,
		DueDate: &due,
	})
	require.NoError(t, err)
	assignment, err = env.assignRepo.FindByID(ctx, lesson.Content)
	require.NoError(t, err)
	assert.True(t, assignment.DueDate.Equal(due))
}

type failingAssignmentCreator struct{ calls int }

func (f *failingAssignmentCreator) Create(context.Context, *models.Assignment) error {
	f.calls++
	return errors.New("disk full")
}

func TestContentServiceAssignmentLessonRollsBack(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	course := env.course(t, teacher, "Algebra")
	module, err := env.content.CreateModule(ctx, teacher, course.ID, models.CreateModuleRequest{Title: "Week 1"})
	require.NoError(t, err)

	creator := &failingAssignmentCreator{}
	svc := NewContentService(ContentServiceParams{
		Courses:     env.courseRepo,
		Modules:     env.moduleRepo,
		Assignments: creator,
		Enrollments: env.enrollRepo,
		Completions: env.completeRepo,
		Submissions: env.submitRepo,
	})

	_, err = svc.CreateLesson(ctx, teacher, course.ID, module.ID, models.CreateLessonRequest{Title: "Homework", Type: models.LessonAssignment})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, 1, creator.calls)

	stored, err := env.moduleRepo.FindByID(ctx, module.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Lessons)
}

func TestContentServiceAssignmentLessonMissingModule(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	course := env.course(t, teacher, "Algebra")

	_, err := env.content.CreateLesson(ctx, teacher, course.ID, "missing", models.CreateLessonRequest{Title: "Homework", Type: models.LessonAssignment})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	assignments, err := env.assignRepo.ListByCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestContentServiceCreateLessonRejectsForeignModule(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	a := env.course(t, teacher, "A")
	b := env.course(t, teacher, "B")
	module, err := env.content.CreateModule(ctx, teacher, a.ID, models.CreateModuleRequest{Title: "Week 1"})
	require.NoError(t, err)

	_, err = env.content.CreateLesson(ctx, teacher, b.ID, module.ID, models.CreateLessonRequest{Title: "x", Type: models.LessonText})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = env.content.CreateLesson(ctx, teacher, a.ID, module.ID, models.CreateLessonRequest{Title: "x", Type: "podcast"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestContentServiceMarkLessonComplete(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	student := env.user(t, "sam", models.RoleStudent)
	stranger := env.user(t, "lou", models.RoleStudent)
	course := env.course(t, teacher, "Algebra")
	module, err := env.content.CreateModule(ctx, teacher, course.ID, models.CreateModuleRequest{Title: "Week 1"})
	require.NoError(t, err)
	lesson, err := env.content.CreateLesson(ctx, teacher, course.ID, module.ID, models.CreateLessonRequest{Title: "Read", Type: models.LessonText})
	require.NoError(t, err)
	homework, err := env.content.CreateLesson(ctx, teacher, course.ID, module.ID, models.CreateLessonRequest{Title: "HW", Type: models.LessonAssignment})
	require.NoError(t, err)
	env.enroll(t, student, course.ID)

	first, err := env.content.MarkLessonComplete(ctx, student, course.ID, module.ID, lesson.ID)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	second, err := env.content.MarkLessonComplete(ctx, student, course.ID, module.ID, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CompletedAt.Equal(second.CompletedAt))

	completions, err := env.completeRepo.ListByUserCourse(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 1)

	_, err = env.content.MarkLessonComplete(ctx, student, course.ID, module.ID, homework.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = env.content.MarkLessonComplete(ctx, student, course.ID, module.ID, "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = env.content.MarkLessonComplete(ctx, stranger, course.ID, module.ID, lesson.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = env.content.MarkLessonComplete(ctx, teacher, course.ID, module.ID, lesson.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

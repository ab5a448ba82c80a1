package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func TestDashboardServiceStudent(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	student := env.user(t, "sam", models.RoleStudent)
	algebra := env.course(t, teacher, "Algebra")
	physics := env.course(t, teacher, "Physics")
	env.enroll(t, student, algebra.ID)
	env.enroll(t, student, physics.ID)

	now := env.clock.Now()
	graded := env.assignment(t, teacher, algebra.ID, "Graded", now.Add(time.Hour))
	env.assignment(t, teacher, physics.ID, "Lab", now.Add(3*24*time.Hour))
	env.assignment(t, teacher, algebra.ID, "Quiz", now.Add(24*time.Hour))
	env.assignment(t, teacher, algebra.ID, "Next month", now.Add(30*24*time.Hour))
	env.assignment(t, teacher, algebra.ID, "Overdue", now.Add(-time.Hour))
	sub := env.submit(t, student, graded.ID, "x")
	env.grade(t, teacher, sub.ID, 77, "")

	resp, cached, err := env.dashboard.Student(ctx, student)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, resp.EnrolledCourses)
	require.Len(t, resp.UpcomingDeadlines, 2)
	assert.Equal(t, "Quiz", resp.UpcomingDeadlines[0].Title)
	assert.Equal(t, "Algebra", resp.UpcomingDeadlines[0].CourseTitle)
	assert.Equal(t, "Lab", resp.UpcomingDeadlines[1].Title)
	require.NotNil(t, resp.AverageGrade)
	assert.Equal(t, 77, *resp.AverageGrade)
}

func TestDashboardServiceTeacher(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	ana := env.user(t, "ana", models.RoleStudent)
	bo := env.user(t, "bo", models.RoleStudent)
	course := env.course(t, teacher, "Algebra")
	env.course(t, teacher, "Empty")
	env.enroll(t, ana, course.ID)
	env.enroll(t, bo, course.ID)
	assignment := env.assignment(t, teacher, course.ID, "Essay", env.clock.Now().Add(time.Hour))

	first := env.submit(t, ana, assignment.ID, "x")
	env.clock.Advance(2 * time.Hour)
	env.submit(t, bo, assignment.ID, "y")

	resp, _, err := env.dashboard.Teacher(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Courses)
	assert.Equal(t, 2, resp.Students)
	require.Len(t, resp.PendingSubmissions, 2)
	assert.Equal(t, "bo", resp.PendingSubmissions[0].StudentName)
	assert.Equal(t, string(models.SubmissionLate), resp.PendingSubmissions[0].Status)
	assert.Equal(t, "Essay", resp.PendingSubmissions[1].AssignmentTitle)

	env.grade(t, teacher, first.ID, 90, "")
	resp, _, err = env.dashboard.Teacher(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, resp.PendingSubmissions, 1)
	assert.Equal(t, "bo", resp.PendingSubmissions[0].StudentName)
}

func TestDashboardServiceForActor(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	student := env.user(t, "sam", models.RoleStudent)

	out, _, err := env.dashboard.ForActor(ctx, student)
	require.NoError(t, err)
	assert.IsType(t, &dto.StudentDashboardResponse{}, out)

	out, _, err = env.dashboard.ForActor(ctx, teacher)
	require.NoError(t, err)
	assert.IsType(t, &dto.TeacherDashboardResponse{}, out)

	_, _, err = env.dashboard.ForActor(ctx, models.Actor{ID: "x", Role: "ADMIN"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = env.dashboard.Teacher(ctx, student)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestDashboardServiceCaching(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, env.metrics, time.Minute, nil, true)
	env.dashboard.cache = cache
	env.assignments.cache = cache

	teacher := env.user(t, "grace", models.RoleTeacher)
	student := env.user(t, "sam", models.RoleStudent)
	course := env.course(t, teacher, "Algebra")
	env.enroll(t, student, course.ID)

	first, cached, err := env.dashboard.Student(ctx, student)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Empty(t, first.UpcomingDeadlines)

	_, cached, err = env.dashboard.Student(ctx, student)
	require.NoError(t, err)
	assert.True(t, cached)

	env.assignment(t, teacher, course.ID, "Essay", env.clock.Now().Add(time.Hour))

	fresh, cached, err := env.dashboard.Student(ctx, student)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, fresh.UpcomingDeadlines, 1)
}

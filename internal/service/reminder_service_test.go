package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func TestReminderServiceCheckMine(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	student := env.user(t, "sam", models.RoleStudent)
	course := env.course(t, teacher, "Algebra")
	env.enroll(t, student, course.ID)

	now := env.clock.Now()
	soon := env.assignment(t, teacher, course.ID, "Soon", now.Add(5*time.Hour))
	env.assignment(t, teacher, course.ID, "Edge", now.Add(24*time.Hour))
	env.assignment(t, teacher, course.ID, "Far", now.Add(24*time.Hour+time.Minute))
	env.assignment(t, teacher, course.ID, "Past", now.Add(-time.Hour))
	done := env.assignment(t, teacher, course.ID, "Done", now.Add(2*time.Hour))
	env.submit(t, student, done.ID, "x")

	created, err := env.reminders.CheckMine(ctx, student)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, soon.ID, created[0].AssignmentID)
	assert.Equal(t, `Reminder: "Soon" is due in 5 hours.`, created[0].Message)
	assert.Equal(t, models.NotificationDeadlineReminder, created[0].Type)
	assert.Equal(t, `Reminder: "Edge" is due in 24 hours.`, created[1].Message)

	again, err := env.reminders.CheckMine(ctx, student)
	require.NoError(t, err)
	assert.Empty(t, again)

	inbox, _, err := env.notifications.List(ctx, student, models.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, inbox.Items, 2)
}

func TestReminderServiceCheckMineRejectsTeachers(t *testing.T) {
	env := newLMSEnv(t)
	teacher := env.user(t, "grace", models.RoleTeacher)

	_, err := env.reminders.CheckMine(context.Background(), teacher)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReminderServiceNoEnrollments(t *testing.T) {
	env := newLMSEnv(t)
	student := env.user(t, "sam", models.RoleStudent)

	created, err := env.reminders.CheckMine(context.Background(), student)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestReminderServiceSweep(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	teacher := env.user(t, "grace", models.RoleTeacher)
	ana := env.user(t, "ana", models.RoleStudent)
	bo := env.user(t, "bo", models.RoleStudent)
	algebra := env.course(t, teacher, "Algebra")
	physics := env.course(t, teacher, "Physics")
	env.enroll(t, ana, algebra.ID)
	env.enroll(t, ana, physics.ID)
	env.enroll(t, bo, algebra.ID)
	env.assignment(t, teacher, algebra.ID, "Essay", env.clock.Now().Add(time.Hour))
	env.assignment(t, teacher, physics.ID, "Lab", env.clock.Now().Add(30*time.Minute))

	count, err := env.reminders.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = env.reminders.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDueIn(t *testing.T) {
	assert.Equal(t, "in less than an hour", dueIn(30*time.Minute))
	assert.Equal(t, "in less than an hour", dueIn(45*time.Minute))
	assert.Equal(t, "in less than an hour", dueIn(59*time.Minute))
	assert.Equal(t, "in 1 hour", dueIn(time.Hour))
	assert.Equal(t, "in 1 hour", dueIn(time.Hour+29*time.Minute))
	assert.Equal(t, "in 1 hour", dueIn(time.Hour+59*time.Minute))
	assert.Equal(t, "in 2 hours", dueIn(2*time.Hour+30*time.Minute))
	assert.Equal(t, "in 5 hours", dueIn(5*time.Hour))
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/mailer"
)

type recordingDispatcher struct {
	jobs []jobs.Job
	err  error
}

func (d *recordingDispatcher) TryEnqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestNotificationServiceListNewestFirst(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	sam := env.user(t, "sam", models.RoleStudent)
	other := env.user(t, "lou", models.RoleStudent)

	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, env.notifications.Notify(ctx, &models.Notification{UserID: sam.ID, Type: models.NotificationAssignmentGraded, Message: msg}))
		env.clock.Advance(time.Minute)
	}
	require.NoError(t, env.notifications.Notify(ctx, &models.Notification{UserID: other.ID, Type: models.NotificationAssignmentGraded, Message: "not yours"}))

	list, page, err := env.notifications.List(ctx, sam, models.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, list.Items, 3)
	assert.Equal(t, "third", list.Items[0].Message)
	assert.Equal(t, "first", list.Items[2].Message)
	assert.Equal(t, 3, list.Unread)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 3, page.TotalCount)

	paged, page, err := env.notifications.List(ctx, sam, models.NotificationFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, paged.Items, 1)
	assert.Equal(t, "first", paged.Items[0].Message)
	assert.Equal(t, 2, page.Page)
}

func TestNotificationServiceMarkRead(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	sam := env.user(t, "sam", models.RoleStudent)
	lou := env.user(t, "lou", models.RoleStudent)

	n := &models.Notification{UserID: sam.ID, Type: models.NotificationAssignmentGraded, Message: "graded"}
	require.NoError(t, env.notifications.Notify(ctx, n))
	require.NoError(t, env.notifications.Notify(ctx, &models.Notification{UserID: sam.ID, Type: models.NotificationAssignmentGraded, Message: "again"}))

	_, err := env.notifications.MarkRead(ctx, lou, n.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = env.notifications.MarkRead(ctx, sam, "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	read, err := env.notifications.MarkRead(ctx, sam, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	unreadOnly, _, err := env.notifications.List(ctx, sam, models.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unreadOnly.Items, 1)
	assert.Equal(t, "again", unreadOnly.Items[0].Message)
	assert.Equal(t, 1, unreadOnly.Unread)

	count, err := env.notifications.MarkAllRead(ctx, sam)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	list, _, err := env.notifications.List(ctx, sam, models.NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, list.Unread)
}

func TestNotificationServiceNotifyConflict(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	sam := env.user(t, "sam", models.RoleStudent)

	require.NoError(t, env.notifications.Notify(ctx, &models.Notification{ID: "fixed", UserID: sam.ID, Type: models.NotificationDeadlineReminder}))
	err := env.notifications.Notify(ctx, &models.Notification{ID: "fixed", UserID: sam.ID, Type: models.NotificationDeadlineReminder})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestNotificationServiceMail(t *testing.T) {
	env := newLMSEnv(t)
	ctx := context.Background()
	sam := env.user(t, "sam", models.RoleStudent)

	dispatcher := &recordingDispatcher{}
	sender := &recordingSender{}
	env.notifications.EnableMail(dispatcher, sender, "https://lms.test")

	n := &models.Notification{UserID: sam.ID, Type: models.NotificationAssignmentGraded, Message: `Your submission for "<Essay>" has been graded.`, Link: "/courses/c/assignments/a"}
	require.NoError(t, env.notifications.Notify(ctx, n))
	require.Len(t, dispatcher.jobs, 1)
	job := dispatcher.jobs[0]
	assert.Equal(t, JobTypeNotificationMail, job.Type)
	assert.Equal(t, n.ID, job.Payload)

	require.NoError(t, env.notifications.DeliverMail(ctx, job))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "sam@school.test", msg.ToAddress)
	assert.Equal(t, "Your assignment was graded", msg.Subject)
	assert.Contains(t, msg.TextContent, "https://lms.test/courses/c/assignments/a")
	assert.Contains(t, msg.HTMLContent, "&lt;Essay&gt;")

	sender.err = errors.New("smtp down")
	assert.Error(t, env.notifications.DeliverMail(ctx, job))
	assert.Error(t, env.notifications.DeliverMail(ctx, jobs.Job{Type: JobTypeNotificationMail, Payload: "missing"}))
}

func TestNotificationServiceQueueFullDoesNotFailNotify(t *testing.T) {
	env := newLMSEnv(t)
	sam := env.user(t, "sam", models.RoleStudent)
	env.notifications.EnableMail(&recordingDispatcher{err: jobs.ErrQueueFull}, &recordingSender{}, "")

	err := env.notifications.Notify(context.Background(), &models.Notification{UserID: sam.ID, Type: models.NotificationNewSubmission, Message: "hi"})
	assert.NoError(t, err)
}

func TestMailSubject(t *testing.T) {
	assert.Equal(t, "New submission", mailSubject(models.NotificationNewSubmission))
	assert.Equal(t, "Assignment due soon", mailSubject(models.NotificationDeadlineReminder))
	assert.Equal(t, "Notification", mailSubject("other"))
}

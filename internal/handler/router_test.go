package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/internal/store/memory"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *responseError         `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	metrics := service.NewMetricsService()
	svcs := service.New(service.Deps{
		Driver:       memory.New(),
		Metrics:      metrics,
		Auth:         service.AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour},
		Attachments:  service.AttachmentPolicy{MaxBytes: 1024},
		ExportFiles:  files,
		ExportSigner: storage.NewSignedURLSigner("export-secret", time.Hour),
		Export:       service.ExportConfig{APIPrefix: "/api/v1"},
	})

	r := gin.New()
	r.Use(middleware.Metrics(metrics), middleware.WithResponseMeta())
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Auth:          NewAuthHandler(svcs.Auth),
		Courses:       NewCourseHandler(svcs.Courses),
		Content:       NewContentHandler(svcs.Content),
		Assignments:   NewAssignmentHandler(svcs.Assignments),
		Dashboard:     NewDashboardHandler(svcs.Dashboard),
		Notifications: NewNotificationHandler(svcs.Notifications, svcs.Reminders),
		Exports:       NewExportHandler(svcs.Exports),
		Metrics:       NewMetricsHandler(metrics, nil),
	}, svcs.Auth)
	return &apiClient{t: t, router: r}
}

func (a *apiClient) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *apiClient) decode(rec *httptest.ResponseRecorder, dest interface{}) responseEnvelope {
	a.t.Helper()
	var env responseEnvelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dest != nil {
		require.NoError(a.t, json.Unmarshal(env.Data, dest), string(env.Data))
	}
	return env
}

func (a *apiClient) register(name, role string) (token, id string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": strings.ToLower(name) + "@school.test", "password": "secret123", "role": role,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	a.decode(rec, &out)
	return out.AccessToken, out.User.ID
}

type idOnly struct {
	ID string `json:"id"`
}

func TestAPIEndToEndGrading(t *testing.T) {
	api := newTestAPI(t)
	teacher, _ := api.register("Grace", "TEACHER")
	student, studentID := api.register("Sam", "STUDENT")

	rec := api.do(http.MethodPost, "/courses", teacher, map[string]string{"title": "Algebra"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var course idOnly
	api.decode(rec, &course)

	rec = api.do(http.MethodPost, "/assignments", teacher, map[string]interface{}{
		"course_id": course.ID,
		"title":     "Essay",
		"due_date":  time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var assignment idOnly
	api.decode(rec, &assignment)

	rec = api.do(http.MethodPost, "/courses/"+course.ID+"/enroll", student, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = api.do(http.MethodPost, "/courses/"+course.ID+"/enroll", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/assignments/"+assignment.ID+"/submission", student, map[string]string{"content": "x"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var submission struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	api.decode(rec, &submission)
	assert.Equal(t, "SUBMITTED", submission.Status)

	rec = api.do(http.MethodPut, "/submissions/"+submission.ID+"/grade", teacher, map[string]interface{}{"grade": 85, "feedback": "Good job"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	api.decode(rec, &submission)
	assert.Equal(t, "GRADED", submission.Status)

	rec = api.do(http.MethodGet, "/courses/"+course.ID+"/grade", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var grade struct {
		StudentID string `json:"studentId"`
		Grade     *int   `json:"grade"`
	}
	api.decode(rec, &grade)
	assert.Equal(t, studentID, grade.StudentID)
	require.NotNil(t, grade.Grade)
	assert.Equal(t, 85, *grade.Grade)

	rec = api.do(http.MethodGet, "/notifications", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []struct {
			Type string `json:"type"`
		} `json:"items"`
		Unread int `json:"unread"`
	}
	env := api.decode(rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "assignment-graded", list.Items[0].Type)
	assert.Equal(t, 1, list.Unread)
	assert.EqualValues(t, 1, env.Pagination["total_count"])

	rec = api.do(http.MethodPost, "/notifications/read-all", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, string(api.decode(rec, nil).Data))
}

func TestAPIRoleGates(t *testing.T) {
	api := newTestAPI(t)
	teacher, _ := api.register("Grace", "TEACHER")
	student, _ := api.register("Sam", "STUDENT")

	rec := api.do(http.MethodPost, "/courses", student, map[string]string{"title": "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := api.decode(rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec = api.do(http.MethodPost, "/courses", teacher, map[string]string{"title": "Algebra"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var course idOnly
	api.decode(rec, &course)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/courses/"+course.ID+"/enroll", teacher, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/notifications/deadline-check", teacher, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/courses", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/courses", "garbage", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/courses/missing", student, nil).Code)
}

func TestAPIAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	token, id := api.register("Ada", "STUDENT")

	rec := api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ada again", "email": "ADA@school.test", "password": "secret123", "role": "STUDENT",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@school.test", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@school.test", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me idOnly
	api.decode(rec, &me)
	assert.Equal(t, id, me.ID)

	rec = api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIContentAndDashboard(t *testing.T) {
	api := newTestAPI(t)
	teacher, _ := api.register("Grace", "TEACHER")
	student, _ := api.register("Sam", "STUDENT")

	rec := api.do(http.MethodPost, "/courses", teacher, map[string]string{"title": "Algebra"})
	var course idOnly
	api.decode(rec, &course)
	rec = api.do(http.MethodPost, "/courses/"+course.ID+"/modules", teacher, map[string]string{"title": "Week 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var module idOnly
	api.decode(rec, &module)
	rec = api.do(http.MethodPost, fmt.Sprintf("/courses/%s/modules/%s/lessons", course.ID, module.ID), teacher, map[string]string{
		"title": "Intro", "type": "text", "content": "_hello_",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lesson idOnly
	api.decode(rec, &lesson)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/courses/"+course.ID+"/enroll", student, nil).Code)
	rec = api.do(http.MethodPost, fmt.Sprintf("/courses/%s/modules/%s/lessons/%s/complete", course.ID, module.ID, lesson.ID), student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/courses/"+course.ID+"/modules", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var modules []struct {
		Lessons []struct {
			ContentHTML string `json:"contentHtml"`
			IsCompleted bool   `json:"isCompleted"`
		} `json:"lessons"`
	}
	api.decode(rec, &modules)
	require.Len(t, modules, 1)
	require.Len(t, modules[0].Lessons, 1)
	assert.True(t, modules[0].Lessons[0].IsCompleted)
	assert.Contains(t, modules[0].Lessons[0].ContentHTML, "<em>hello</em>")

	rec = api.do(http.MethodGet, "/me/courses", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []struct {
		Progress struct {
			Percent int `json:"percent"`
		} `json:"progress"`
	}
	api.decode(rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, 100, mine[0].Progress.Percent)

	rec = api.do(http.MethodGet, "/dashboard", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	var dash struct {
		EnrolledCourses int `json:"enrolledCourses"`
	}
	env := api.decode(rec, &dash)
	assert.Equal(t, 1, dash.EnrolledCourses)
	assert.Equal(t, false, env.Meta["cache_hit"])
}

func TestAPIGradebookExport(t *testing.T) {
	api := newTestAPI(t)
	teacher, _ := api.register("Grace", "TEACHER")
	student, _ := api.register("Sam", "STUDENT")

	rec := api.do(http.MethodPost, "/courses", teacher, map[string]string{"title": "Algebra"})
	var course idOnly
	api.decode(rec, &course)
	rec = api.do(http.MethodPost, "/assignments", teacher, map[string]interface{}{
		"course_id": course.ID, "title": "Essay", "due_date": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	var assignment idOnly
	api.decode(rec, &assignment)
	api.do(http.MethodPost, "/courses/"+course.ID+"/enroll", student, nil)
	api.do(http.MethodPost, "/assignments/"+assignment.ID+"/submission", student, map[string]string{"content": "x"})

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/assignments/"+assignment.ID+"/export", student, nil).Code)

	rec = api.do(http.MethodPost, "/assignments/"+assignment.ID+"/export", teacher, map[string]string{"format": "csv"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result struct {
		URL string `json:"url"`
	}
	api.decode(rec, &result)
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))

	req := httptest.NewRequest(http.MethodGet, result.URL, nil)
	download := httptest.NewRecorder()
	api.router.ServeHTTP(download, req)
	require.Equal(t, http.StatusOK, download.Code)
	assert.Contains(t, download.Header().Get("Content-Disposition"), "gradebook_essay_")
	assert.Contains(t, download.Body.String(), "Sam,sam@school.test,SUBMITTED")

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/exports/forged.token.value.sig", "", nil).Code)
}

func TestAPIMetricsSummary(t *testing.T) {
	api := newTestAPI(t)
	api.do(http.MethodGet, "/courses", "", nil)

	rec := api.do(http.MethodGet, "/metrics/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		RequestsTotal uint64 `json:"requestsTotal"`
	}
	api.decode(rec, &snap)
	assert.GreaterOrEqual(t, snap.RequestsTotal, uint64(1))
}

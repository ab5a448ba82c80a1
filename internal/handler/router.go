package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
)

// Handlers bundles every API handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Courses       *CourseHandler
	Content       *ContentHandler
	Assignments   *AssignmentHandler
	Dashboard     *DashboardHandler
	Notifications *NotificationHandler
	Exports       *ExportHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts the API under api. Role gates here mirror the checks
// the services perform themselves.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	teacher := middleware.RequireRoles(models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.GET("/me", middleware.JWT(tokens), h.Auth.Me)

	api.GET("/exports/:token", h.Exports.Download)
	if h.Metrics != nil {
		api.GET("/metrics/summary", h.Metrics.Summary)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.GET("/courses", h.Courses.List)
	secured.POST("/courses", teacher, h.Courses.Create)
	secured.GET("/courses/:id", h.Courses.Get)
	secured.POST("/courses/:id/enroll", student, h.Courses.Enroll)
	secured.GET("/me/courses", h.Courses.MyCourses)

	secured.GET("/courses/:id/modules", h.Content.Modules)
	secured.POST("/courses/:id/modules", teacher, h.Content.CreateModule)
	secured.POST("/courses/:id/modules/:moduleId/lessons", teacher, h.Content.CreateLesson)
	secured.POST("/courses/:id/modules/:moduleId/lessons/:lessonId/complete", student, h.Content.CompleteLesson)

	secured.GET("/courses/:id/assignments", h.Assignments.ListForCourse)
	secured.GET("/courses/:id/grade", h.Assignments.CourseGrade)
	secured.POST("/assignments", teacher, h.Assignments.Create)
	secured.GET("/assignments/:id", h.Assignments.Get)
	secured.GET("/assignments/:id/submission", h.Assignments.GetSubmission)
	secured.POST("/assignments/:id/submission", student, h.Assignments.Submit)
	secured.GET("/assignments/:id/submissions", teacher, h.Assignments.Submissions)
	secured.POST("/assignments/:id/export", teacher, h.Exports.Gradebook)
	secured.PUT("/submissions/:id/grade", teacher, h.Assignments.Grade)

	secured.GET("/dashboard", h.Dashboard.Get)

	secured.GET("/notifications", h.Notifications.List)
	secured.PATCH("/notifications/:id/read", h.Notifications.MarkRead)
	secured.POST("/notifications/read-all", h.Notifications.MarkAllRead)
	secured.POST("/notifications/deadline-check", student, h.Notifications.DeadlineCheck)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

// AssignmentHandler serves assignments, submissions and grading.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs an AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// ListForCourse godoc
// @Summary Course assignments
// @Description Assignments of a course by ascending due date
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/assignments [get]
func (h *AssignmentHandler) ListForCourse(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.assignments.ListForCourse(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Create godoc
// @Summary Create an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Get godoc
// @Summary Get an assignment
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	assignment, err := h.assignments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// GetSubmission godoc
// @Summary Get a submission
// @Description The caller's own submission, or a student's when studentId is given by the course teacher. Data is null when nothing was submitted.
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param studentId query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submission [get]
func (h *AssignmentHandler) GetSubmission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	sub, err := h.assignments.GetSubmission(c.Request.Context(), actor, c.Param("id"), c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	// a typed nil keeps "data": null in the envelope
	response.OK(c, sub)
}

// Submit godoc
// @Summary Submit work
// @Description Creates or replaces the caller's submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body models.SubmitRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submission [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.SubmitRequest
	if !bindJSON(c, &req, "invalid submission payload") {
		return
	}
	sub, err := h.assignments.Submit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sub)
}

// Submissions godoc
// @Summary Gradebook rows
// @Description One row per enrolled student, sorted by name
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) Submissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rows, err := h.assignments.SubmissionsForAssignment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param payload body models.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grade [put]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.GradeRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	sub, err := h.assignments.Grade(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sub)
}

// CourseGrade godoc
// @Summary Overall course grade
// @Description Rounded mean of graded submissions; grade is null when nothing is graded
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param studentId query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/grade [get]
func (h *AssignmentHandler) CourseGrade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	grade, err := h.assignments.OverallCourseGrade(c.Request.Context(), actor, c.Param("id"), c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

// ContentHandler serves modules and lessons.
type ContentHandler struct {
	content *service.ContentService
}

// NewContentHandler constructs a ContentHandler.
func NewContentHandler(content *service.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// Modules godoc
// @Summary Course modules
// @Description Modules with lessons and completion flags for the caller
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/modules [get]
func (h *ContentHandler) Modules(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	modules, err := h.content.Modules(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, modules)
}

// CreateModule godoc
// @Summary Add a module
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body models.CreateModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/modules [post]
func (h *ContentHandler) CreateModule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateModuleRequest
	if !bindJSON(c, &req, "invalid module payload") {
		return
	}
	module, err := h.content.CreateModule(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// CreateLesson godoc
// @Summary Add a lesson
// @Description Assignment lessons also create the assignment they point at
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param moduleId path string true "Module ID"
// @Param payload body models.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/modules/{moduleId}/lessons [post]
func (h *ContentHandler) CreateLesson(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateLessonRequest
	if !bindJSON(c, &req, "invalid lesson payload") {
		return
	}
	lesson, err := h.content.CreateLesson(c.Request.Context(), actor, c.Param("id"), c.Param("moduleId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// CompleteLesson godoc
// @Summary Mark a lesson complete
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param moduleId path string true "Module ID"
// @Param lessonId path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/modules/{moduleId}/lessons/{lessonId}/complete [post]
func (h *ContentHandler) CompleteLesson(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	completion, err := h.content.MarkLessonComplete(c.Request.Context(), actor, c.Param("id"), c.Param("moduleId"), c.Param("lessonId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, completion)
}

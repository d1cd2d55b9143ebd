package api

import (
	"net/http"

	"course-commerce/internal/auth"
	"course-commerce/internal/models"
	"course-commerce/internal/service"

	"github.com/gin-gonic/gin"
)

// setupAdminRoutes registers the back-office routes. Everything here
// requires an admin token.
func (h *Handler) setupAdminRoutes(v1 *gin.RouterGroup) {
	admin := v1.Group("/admin")
	admin.Use(h.tokens.Middleware(), auth.RequireAdmin())
	{
		admin.POST("/courses", h.createCourse)
		admin.PUT("/courses/:id", h.updateCourse)
		admin.DELETE("/courses/:id", h.deleteCourse)

		admin.POST("/sessions", h.createSession)

		admin.POST("/categories", h.createCategory)
		admin.GET("/categories", h.listCategories)
		admin.DELETE("/categories/:id", h.deleteCategory)

		admin.POST("/instructors", h.createInstructor)
		admin.GET("/instructors", h.listInstructors)
		admin.DELETE("/instructors/:id", h.deleteInstructor)

		admin.POST("/attachments", h.createAttachment)
		admin.PUT("/attachments/:id/file", h.uploadAttachmentFile)

		admin.PUT("/email-templates", h.saveEmailTemplate)
		admin.GET("/users/:id/emails", h.listEmailLogs)

		admin.POST("/orders/:id/refund", h.refundOrder)
		admin.POST("/links/:id/revoke", h.revokeLink)
	}
}

func (h *Handler) saveEmailTemplate(c *gin.Context) {
	var t models.EmailTemplate
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if t.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template name required"})
		return
	}

	if err := h.notifier.SaveTemplate(c.Request.Context(), &t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) listEmailLogs(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		return
	}

	logs, err := h.notifier.History(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"emails": logs})
}

func (h *Handler) createCourse(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	course, err := h.catalogService.CreateCourse(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (h *Handler) updateCourse(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}

	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	course, err := h.catalogService.UpdateCourse(c.Request.Context(), id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *Handler) deleteCourse(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}

	if err := h.catalogService.DeleteCourse(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createSession(c *gin.Context) {
	var sess models.Session
	if err := c.ShouldBindJSON(&sess); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.catalogService.CreateSession(c.Request.Context(), &sess)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) createCategory(c *gin.Context) {
	var cat models.Category
	if err := c.ShouldBindJSON(&cat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.catalogService.CreateCategory(c.Request.Context(), &cat); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) deleteCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}

	if err := h.catalogService.DeleteCategory(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createInstructor(c *gin.Context) {
	var in models.Instructor
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.catalogService.CreateInstructor(c.Request.Context(), &in); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, in)
}

func (h *Handler) listInstructors(c *gin.Context) {
	instructors, err := h.catalogService.ListInstructors(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instructors": instructors})
}

func (h *Handler) deleteInstructor(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}

	if err := h.catalogService.DeleteInstructor(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createAttachment(c *gin.Context) {
	var req struct {
		CourseID    int64  `json:"course_id" binding:"required"`
		FileName    string `json:"file_name" binding:"required"`
		StoragePath string `json:"storage_path" binding:"required"`
		ContentType string `json:"content_type"`
		Deliverable bool   `json:"deliverable"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	a := models.Attachment{
		CourseID:    req.CourseID,
		FileName:    req.FileName,
		StoragePath: req.StoragePath,
		ContentType: req.ContentType,
		Deliverable: req.Deliverable,
	}
	if err := h.catalogService.CreateAttachment(c.Request.Context(), &a); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// uploadAttachmentFile stores the raw request body as the attachment's
// file content
func (h *Handler) uploadAttachmentFile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}

	a, err := h.catalogService.SaveAttachmentFile(c.Request.Context(), id, c.Request.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) refundOrder(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		return
	}

	if err := h.paymentService.Refund(c.Request.Context(), orderID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refund accepted"})
}

func (h *Handler) revokeLink(c *gin.Context) {
	linkID, err := pathID(c, "id")
	if err != nil {
		return
	}

	if err := h.linkService.Revoke(c.Request.Context(), linkID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Package requests implements the /requests endpoints: submission, scoped
// listing, detail, audit trail and manifest download.
package requests

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/api/respond"
	"github.com/platformhub/platformhub/internal/middleware"
	"github.com/platformhub/platformhub/internal/services"
)

// Handler serves the /requests routes. Every route requires AuthMiddleware.
type Handler struct {
	requests *services.RequestService
}

// NewHandler creates a new Handler
func NewHandler(requests *services.RequestService) *Handler {
	return &Handler{requests: requests}
}

// @Summary      Create request
// @Tags         Requests
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.ResourceRequest
// @Failure      422  {object}  map[string]interface{}  "Validation error"
// @Router       /requests [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var in services.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.InvalidBody(c, err)
		return
	}
	req, err := h.requests.Create(c.Request.Context(), user, in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// @Summary      List requests
// @Description  Developers see their own requests; approvers and admins see all. Newest first.
// @Tags         Requests
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "pending, approved or rejected"
// @Success      200  {array}  models.ResourceRequest
// @Router       /requests [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	list, err := h.requests.List(c.Request.Context(), user, c.Query("status"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Get request
// @Tags         Requests
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Request ID"
// @Success      200  {object}  models.ResourceRequest
// @Failure      403  {object}  map[string]interface{}  "Not authorized to view this request"
// @Failure      404  {object}  map[string]interface{}  "Request not found"
// @Router       /requests/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	req, err := h.requests.Get(c.Request.Context(), user, id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Audit returns the request's audit trail, oldest first.
func (h *Handler) Audit(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	trail, err := h.requests.Audit(c.Request.Context(), user, id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, trail)
}

// Manifest serves an approved request's manifest as an attachment. A
// matching If-None-Match yields 304.
func (h *Handler) Manifest(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	file, err := h.requests.Manifest(c.Request.Context(), user, id)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.Header("ETag", file.ETag)
	if c.GetHeader("If-None-Match") == file.ETag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

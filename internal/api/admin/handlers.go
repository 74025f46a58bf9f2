// Package admin implements the review queue and user role management
// endpoints. Routes are mounted behind RequireRole in the router; the
// services re-check roles.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/api/respond"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/middleware"
	"github.com/platformhub/platformhub/internal/services"
)

// Handler serves the /admin routes
type Handler struct {
	reviews *services.ReviewService
	auth    *services.AuthService
}

// NewHandler creates a new Handler
func NewHandler(reviews *services.ReviewService, auth *services.AuthService) *Handler {
	return &Handler{reviews: reviews, auth: auth}
}

type reviewInput struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type roleInput struct {
	Role models.Role `json:"role"`
}

// @Summary      Pending requests
// @Description  The review queue, oldest first.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  models.ResourceRequest
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /admin/pending [get]
func (h *Handler) Pending(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	list, err := h.reviews.ListPending(c.Request.Context(), user)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Review request
// @Description  Approve or reject a pending request. Approval renders the manifest.
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  int  true  "Request ID"
// @Success      200  {object}  models.ResourceRequest
// @Failure      400  {object}  map[string]interface{}  "Request is already {status} / invalid action"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Request not found"
// @Router       /admin/{id}/review [post]
func (h *Handler) Review(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	var in reviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.InvalidBody(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)
	req, err := h.reviews.Review(c.Request.Context(), user, id, in.Action, in.Comment)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// SetRole changes a user's role. Admin only.
func (h *Handler) SetRole(c *gin.Context) {
	var in roleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.InvalidBody(c, err)
		return
	}
	actor, _ := middleware.CurrentUser(c)
	user, err := h.auth.SetRole(c.Request.Context(), actor, c.Param("username"), in.Role)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

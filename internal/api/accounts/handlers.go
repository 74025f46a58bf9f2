// Package accounts implements the /auth endpoints: registration, login and
// the current-user lookup.
package accounts

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/api/respond"
	"github.com/platformhub/platformhub/internal/middleware"
	"github.com/platformhub/platformhub/internal/services"
)

// Handler serves the /auth routes
type Handler struct {
	auth *services.AuthService
}

// NewHandler creates a new Handler
func NewHandler(auth *services.AuthService) *Handler {
	return &Handler{auth: auth}
}

type loginInput struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// @Summary      Register
// @Description  Create a developer account.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.User
// @Failure      400  {object}  map[string]interface{}  "Username or email already registered"
// @Failure      422  {object}  map[string]interface{}  "Validation error"
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		respond.InvalidBody(c, err)
		return
	}
	user, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary      Login
// @Description  Exchange a username and password for a bearer token. Accepts form or JSON bodies.
// @Tags         Auth
// @Accept       x-www-form-urlencoded,json
// @Produce      json
// @Success      200  {object}  services.Token
// @Failure      401  {object}  map[string]interface{}  "Incorrect username or password"
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var in loginInput
	if err := c.ShouldBind(&in); err != nil {
		respond.InvalidBody(c, err)
		return
	}
	if in.Username == "" || in.Password == "" {
		respond.Abort(c, http.StatusUnprocessableEntity, "username and password are required")
		return
	}
	token, err := h.auth.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, services.MsgInvalidToken)
		return
	}
	c.JSON(http.StatusOK, user)
}

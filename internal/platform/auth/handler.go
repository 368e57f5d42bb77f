package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves login and user administration.
type Handler struct {
	users  *UserStore
	tokens *TokenIssuer
}

func NewHandler(users *UserStore, tokens *TokenIssuer) *Handler {
	return &Handler{users: users, tokens: tokens}
}

// RegisterPublicRoutes mounts the endpoints that need no session.
func (h *Handler) RegisterPublicRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
}

// RegisterRoutes mounts the endpoints that run behind SessionMiddleware.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/auth/me", h.Me)
	api.POST("/auth/logout", h.Logout)
	admin := api.Group("", RequireCapability(Role.CanCreateUsers, "create users"))
	admin.POST("/users", h.CreateUser)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.users.Authenticate(c.Request().Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	token, err := h.tokens.Issue(sess)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, Username: sess.Username, Role: sess.Role})
}

func (h *Handler) Me(c echo.Context) error {
	sess := SessionFromEcho(c)
	if !sess.Authenticated() {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"username": sess.Username,
		"role":     sess.Role.String(),
	})
}

// Logout revokes the bearer token of the current request.
func (h *Handler) Logout(c echo.Context) error {
	sess := SessionFromEcho(c)
	if !sess.Authenticated() {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	h.tokens.Revoke(sess)
	return c.NoContent(http.StatusNoContent)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err = h.users.CreateUser(c.Request().Context(), SessionFromEcho(c), req.Username, req.Password, role)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidUser):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user")
	}
	return c.JSON(http.StatusCreated, map[string]string{"username": req.Username, "role": role.String()})
}

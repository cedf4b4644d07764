// Package handler contains the echo handlers of the gateway routes.
package handler

import (
	"net/http"
	"strings"

	"gateway/internal/delivery/api/response"
	deliverycontext "gateway/internal/delivery/context"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/errors"
	"gateway/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Success messages of payload-less operations.
const (
	msgRegistered = "User created successfully"
	msgLoggedOut  = "Logged out successfully"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
}

// AuthHandler holds dependencies for the gateway's auth endpoints
type AuthHandler struct {
	authUC usecase.AuthUsecase
}

// NewAuthHandler is the constructor for AuthHandler
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC: params.AuthUC,
	}
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registering a user
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

func (r *LoginRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *RegisterRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// RefreshRequest represents the request body for refresh and logout
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Login handles POST /gateway/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pair, err := h.authUC.Login(c.Request().Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, &response.TokenPair{
		Access:  pair.AccessToken,
		Refresh: pair.RefreshToken,
	})
}

// Register handles POST /gateway/register. It does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err := h.authUC.Register(c.Request().Context(), usecase.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, &response.Message{Success: msgRegistered})
}

// Refresh handles POST /gateway/refresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pair, err := h.authUC.Refresh(c.Request().Context(), usecase.RefreshInput{RefreshToken: req.Refresh})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, &response.TokenPair{
		Access:  pair.AccessToken,
		Refresh: pair.RefreshToken,
	})
}

// Logout handles POST /gateway/logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authUC.Logout(c.Request().Context(), usecase.RefreshInput{RefreshToken: req.Refresh}); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, &response.Message{Success: msgLoggedOut})
}

// Me handles GET /gateway/me. It must run behind AuthMiddleware.Authenticate.
func (h *AuthHandler) Me(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	return response.Success(c, http.StatusOK, &response.Session{
		UserID:    principal.UserID.String(),
		SessionID: principal.SessionID.String(),
	})
}

// HealthCheck handles GET /health.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, &response.Health{Status: "ok"})
}

// normalizer is implemented by requests that clean up fields before validation.
type normalizer interface {
	normalize()
}

// bindAndValidate decodes the JSON body into req and runs the echo validator.
// Malformed bodies are reported as validation failures, not echo's generic 400.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("request body must be a JSON object")
	}

	if n, ok := req.(normalizer); ok {
		n.normalize()
	}

	if err := c.Validate(req); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

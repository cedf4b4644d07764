package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	deliverycontext "gateway/internal/delivery/context"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/errors"
	"gateway/internal/usecase"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware guards routes that require a live access token.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
	logger *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC, logger: logger}
}

// Authenticate resolves the bearer token to the current session of its user.
// Tokens that are malformed, expired or from a replaced session all answer 401.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			return domainerrors.ErrUnauthorized
		}
		token := strings.TrimSpace(header[len(bearerPrefix):])

		current, err := m.authUC.CurrentSession(c.Request().Context(), token)
		if err != nil {
			var appErr domainerrors.AppError
			if !errors.As(err, &appErr) || appErr.HTTPCode() >= http.StatusInternalServerError {
				return errors.Wrap(err, "failed to resolve bearer token")
			}
			deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger).
				Debug("Bearer token rejected", slog.Any("error", err))

			return domainerrors.ErrUnauthorized
		}

		deliverycontext.SetPrincipal(c, deliverycontext.Principal{
			UserID:    current.UserID,
			SessionID: current.SessionID,
		})

		return next(c)
	}
}

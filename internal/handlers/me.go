package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/middlewares"
	"github.com/sbilibin2017/elevenfingers-auth/internal/models"
	"github.com/sbilibin2017/elevenfingers-auth/internal/services"
)

// Profiler defines the interface that the profile service must implement.
type Profiler interface {
	Profile(ctx context.Context, username string) (*models.User, error)
}

// NewMeHandler returns an HTTP handler for the authenticated user's profile.
// It must run behind middlewares.AuthMiddleware.
// @Summary Current user
// @Description Returns the public profile of the token owner
// @Tags auth
// @Produce json
// @Success 200 {object} models.User "Current user"
// @Failure 401 {object} handlers.ErrorResponse "Not authenticated"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/me [get]
// @Security BearerAuth
func NewMeHandler(svc Profiler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := middlewares.UsernameFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		user, err := svc.Profile(r.Context(), username)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				writeError(w, http.StatusNotFound, "User not found")
			default:
				logger.Log.Errorw("internal server error", "err", err)
				writeError(w, http.StatusInternalServerError, msgInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

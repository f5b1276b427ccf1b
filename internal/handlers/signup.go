package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/models"
	"github.com/sbilibin2017/elevenfingers-auth/internal/services"
)

// Signuper defines the interface that the signup service must implement.
type Signuper interface {
	Signup(ctx context.Context, email, username, password string) (*models.User, error)
}

// SignupRequest represents the JSON body for user signup
// swagger:model SignupRequest
type SignupRequest struct {
	// Email
	// required: true
	// example: john@example.com
	Email string `json:"email" validate:"required,email,max=255"`

	// Username
	// required: true
	// example: john_doe
	Username string `json:"username" validate:"required,max=50"`

	// Password, at most 72 bytes (bcrypt limit)
	// required: true
	// example: secret123
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// NewSignupHandler returns an HTTP handler for user signup.
// @Summary Sign up a new user
// @Description Creates a new user account. Email and username must be unique. The password is stored as a bcrypt hash.
// @Tags auth
// @Accept json
// @Produce json
// @Param signupRequest body handlers.SignupRequest true "User signup request"
// @Success 201 {object} models.User "User created"
// @Failure 400 {object} handlers.ErrorResponse "Email or username already in use / invalid request"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/signup [post]
func NewSignupHandler(svc Signuper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Log.Infow("signup request rejected", "err", err)
			writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
			return
		}

		user, err := svc.Signup(r.Context(), req.Email, req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrEmailAlreadyExists):
				writeError(w, http.StatusBadRequest, "Email already in use")
			case errors.Is(err, services.ErrUsernameAlreadyExists):
				writeError(w, http.StatusBadRequest, "Username already in use")
			case errors.Is(err, services.ErrConflict):
				writeError(w, http.StatusBadRequest, "Email or username already in use")
			case errors.Is(err, services.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
			default:
				logger.Log.Errorw("internal server error", "err", err)
				writeError(w, http.StatusInternalServerError, msgInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/services"
)

// maxVerifyBody bounds the credential body read by the verify handler.
const maxVerifyBody = 16 << 10

// Verifier defines the interface that the token verification service must implement.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// TokenExtractor reads a bearer token from request headers.
type TokenExtractor interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
}

// VerifyRequest represents a bearer credential sent in the body
// swagger:model VerifyRequest
type VerifyRequest struct {
	// Authorization scheme, must be bearer when present
	// example: Bearer
	Scheme string `json:"scheme" validate:"omitempty,eq_ignore_case=bearer"`

	// The token itself
	// required: true
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	Credentials string `json:"credentials" validate:"required"`
}

// VerifyResponse represents a successful verification
// swagger:model VerifyResponse
type VerifyResponse struct {
	// example: true
	Verify bool `json:"verify"`
	// Subject of the token
	// example: john_doe
	Username string `json:"username"`
}

// NewVerifyHandler returns an HTTP handler for token verification. The token
// is taken from a JSON body when one is sent, otherwise from the
// Authorization header.
// @Summary Verify an access token
// @Description Checks signature and expiry of a bearer token and returns its username
// @Tags auth
// @Accept json
// @Produce json
// @Param verifyRequest body handlers.VerifyRequest false "Bearer credential (alternatively use the Authorization header)"
// @Success 200 {object} handlers.VerifyResponse "Token is valid"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request body"
// @Failure 401 {object} handlers.ErrorResponse "Could not validate credentials"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/verify [post]
// @Security BearerAuth
func NewVerifyHandler(svc Verifier, extractor TokenExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxVerifyBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
			return
		}

		var token string
		if len(bytes.TrimSpace(body)) > 0 {
			var req VerifyRequest
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
				return
			}
			if err := validate.Struct(req); err != nil {
				logger.Log.Infow("verify request rejected", "err", err)
				writeUnauthorized(w, "Could not validate credentials")
				return
			}
			token = strings.TrimSpace(req.Credentials)
		} else {
			token, err = extractor.GetTokenFromRequest(ctx, r)
			if err != nil {
				logger.Log.Infow("verify request without credentials", "err", err)
				writeUnauthorized(w, "Not authenticated")
				return
			}
		}

		username, err := svc.Verify(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUnauthorized):
				writeUnauthorized(w, "Could not validate credentials")
			default:
				logger.Log.Errorw("internal server error", "err", err)
				writeError(w, http.StatusInternalServerError, msgInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, VerifyResponse{Verify: true, Username: username})
	}
}

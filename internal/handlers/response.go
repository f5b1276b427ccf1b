package handlers

//go:generate mockgen -source=signup.go -destination=signup_mock.go -package=handlers
//go:generate mockgen -source=login.go -destination=login_mock.go -package=handlers
//go:generate mockgen -source=verify.go -destination=verify_mock.go -package=handlers
//go:generate mockgen -source=me.go -destination=me_mock.go -package=handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
)

// Fixed client-facing messages.
const (
	msgInvalidRequestBody  = "Invalid request body"
	msgInternalServerError = "Internal server error"
)

var validate = newValidator()

// newValidator adds maxbytes, a length limit counted in bytes rather than
// runes (bcrypt reads at most 72 bytes).
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	}); err != nil {
		panic(err)
	}
	return v
}

// ErrorResponse represents an error response
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// example: Invalid request body
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeUnauthorized answers 401 with the bearer challenge header.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}

package models

// TokenTypeBearer is the only token type issued by the service.
const TokenTypeBearer = "bearer"

// Token represents an issued access token
// swagger:model Token
type Token struct {
	// Signed JWT
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	AccessToken string `json:"access_token"`

	// example: bearer
	TokenType string `json:"token_type"`
}

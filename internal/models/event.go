package models

// UserSignedUp is published after a new account has been stored.
type UserSignedUp struct {
	UserID    int64  `json:"user_id"`   // UserID is the generated identifier of the new user.
	Email     string `json:"email"`     // Email of the new user.
	Username  string `json:"username"`  // Username of the new user.
	Timestamp int64  `json:"timestamp"` // Timestamp is the Unix time (seconds) of the signup.
}

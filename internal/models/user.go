package models

import "time"

// UserDB represents a user record in the database
type UserDB struct {
	ID           int64     `json:"id" db:"id"`                       // Primary key
	Email        string    `json:"email" db:"email"`                 // Unique email
	Username     string    `json:"username" db:"username"`           // Unique username
	PasswordHash string    `json:"password_hash" db:"password_hash"` // Bcrypt hash of the password
	CreatedAt    time.Time `json:"created_at" db:"created_at"`       // Creation timestamp
}

// Public returns the client-facing projection of the record.
func (u *UserDB) Public() *User {
	return &User{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
	}
}

// User is the public view of a user returned to clients
// swagger:model User
type User struct {
	// example: 1
	ID int64 `json:"id"`
	// example: john@example.com
	Email string `json:"email"`
	// example: john_doe
	Username string `json:"username"`
}

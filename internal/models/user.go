package models

import "time"

// User represents a named session identity in the database
type User struct {
	ID        string    `json:"id" db:"id"`                // Externally generated uuid
	Name      string    `json:"name" db:"name"`            // Display name
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // Time of the latest (re-)registration
}

// CreateUserRequest represents the JSON body for user registration
// swagger:model CreateUserRequest
type CreateUserRequest struct {
	// Display name
	// required: true
	// example: Alice
	Name string `json:"name"`
}

// UserResponse is the envelope returned by the user endpoints
// swagger:model UserResponse
type UserResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

package models

import "time"

// Entry represents a deduplicated post row in the database
type Entry struct {
	ID        int64     `json:"id" db:"id"`                // Auto-assigned sequential identifier
	Text      string    `json:"text" db:"text"`            // Posted text, unique across entries
	Count     int       `json:"count" db:"count"`          // Number of times the text has been posted
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // Time of first insertion
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"` // Time of the latest insert or increment
	UserID    *string   `json:"userId" db:"user_id"`       // Most recent poster id, null when anonymous
	UserName  *string   `json:"userName" db:"user_name"`   // Most recent poster name, null when anonymous
}

// CreateEntryRequest represents the JSON body for posting an entry
// swagger:model CreateEntryRequest
type CreateEntryRequest struct {
	// Text of the post, must contain the keyword phrase
	// required: true
	// example: だいたいロマ子のテスト
	Text string `json:"text"`

	// Id of the posting user
	// example: 0b7c2a4e-8f7e-4a0e-8d7b-3c1d2e4f5a6b
	UserID *string `json:"userId,omitempty"`

	// Display name of the posting user
	// example: Alice
	UserName *string `json:"userName,omitempty"`
}

// EntryResponse is the envelope returned by POST /entries
// swagger:model EntryResponse
type EntryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Entry   *Entry `json:"entry,omitempty"`
}

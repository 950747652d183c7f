package models

import "encoding/json"

// Broadcast event names.
const (
	EventEntryCreated = "entryCreated"
	EventJoin         = "join"
)

// Event is a single frame on the broadcast channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinPayload is announced by a client once its session is established.
type JoinPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

package model

import "time"

// EventKind classifies an entry in the server audit log.
type EventKind string

const (
	EventConnect    EventKind = "connect"    // session completed the handshake
	EventDisconnect EventKind = "disconnect" // session left (clean or unclean)
	EventKick       EventKind = "kick"       // session removed by an operator
	EventCommand    EventKind = "command"    // admin command executed
)

// Event is one audit log entry. The audit log records administrative and
// lifecycle activity only; chat message content is never stored.
type Event struct {
	ID        int64     `json:"id"`
	Kind      EventKind `json:"kind"`
	Actor     string    `json:"actor"`  // username or "console"
	Detail    string    `json:"detail"` // free-form context (peer address, command keyword, reason)
	CreatedAt time.Time `json:"created_at"`
}

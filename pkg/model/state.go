package model

// SessionState tracks a connection through its lifecycle.
// Transitions: Connecting -> Connected -> Disconnecting -> Closed.
// A failed handshake goes straight from Connecting to Closed.
type SessionState int32

const (
	StateConnecting SessionState = iota // accepted, handshake not yet completed
	StateConnected                      // handshake succeeded, registered
	StateDisconnecting                  // intentional disconnect in progress
	StateClosed                         // underlying connection fully shut down
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

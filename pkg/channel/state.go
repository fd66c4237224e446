package channel

// State is the connection state of one logical channel.
type State int

const (
	// StateIdle means the channel has not been opened, or was explicitly
	// closed by the caller.
	StateIdle State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateOpen means the transport is live and the heartbeat is running.
	StateOpen
	// StateClosedRetryPending means the transport dropped unexpectedly and a
	// reconnect timer is armed.
	StateClosedRetryPending
	// StateClosedExhausted means the reconnect budget ran out. Terminal for
	// this channel instance until the caller re-invokes Open.
	StateClosedExhausted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosedRetryPending:
		return "CLOSED_RETRY_PENDING"
	case StateClosedExhausted:
		return "CLOSED_EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

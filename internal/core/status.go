package core

// Status describes the state of a session's live event stream.
type Status int

const (
	// StatusDisconnected means no transport exists and none is scheduled.
	StatusDisconnected Status = iota
	// StatusConnecting means a transport is being opened.
	StatusConnecting
	// StatusConnected means the transport is open and frames flow.
	StatusConnected
	// StatusReconnecting means the transport dropped and a redial is scheduled.
	StatusReconnecting
	// StatusAbandoned means automatic retries are exhausted; only an explicit
	// connect resumes live updates.
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name for JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NewStatusValue returns an observable status that only publishes transitions.
func NewStatusValue() *Value[Status] {
	return NewValue(StatusDisconnected, func(a, b Status) bool { return a == b })
}

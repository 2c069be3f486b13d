package session

// State is the lifecycle position of a session.
//
//	Open → (Reading → Validating → Computing → Writing)* → Closed
//
// Validating goes straight to Writing when the request is rejected.
type State int32

const (
	StateOpen State = iota
	StateReading
	StateValidating
	StateComputing
	StateWriting
	StateClosed
)

var stateNames = [...]string{
	StateOpen:       "open",
	StateReading:    "reading",
	StateValidating: "validating",
	StateComputing:  "computing",
	StateWriting:    "writing",
	StateClosed:     "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Outcome classifies how a request was answered.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeLimitExceeded Outcome = "limit_exceeded"
	OutcomeTooLarge      Outcome = "too_large"
)

// CloseReason classifies why a session ended.
type CloseReason string

const (
	// CloseEOF is a clean end of stream between two requests.
	CloseEOF CloseReason = "eof"
	// CloseDisconnect is a peer reset or a stream cut inside a frame.
	CloseDisconnect CloseReason = "disconnect"
	// CloseCanceled means the server canceled the session.
	CloseCanceled CloseReason = "canceled"
	// CloseWriteError is a failure writing a response.
	CloseWriteError CloseReason = "write_error"
	// CloseReadError is any other read failure.
	CloseReadError CloseReason = "read_error"
)

package session

// LoginState tracks a session's progress through authentication. A session
// only ever moves forward: None, then Checking, then exactly one terminal
// state.
type LoginState int

const (
	// None means no login has been attempted yet.
	None LoginState = iota
	// Checking means credentials are with the auth worker. A Checking
	// session is never swept, even if its connection has died.
	Checking
	Success
	InvalidCredentials
	TooManyAttempts
	BackendUnavailable
)

// Terminal reports whether the login attempt has completed.
func (s LoginState) Terminal() bool {
	return s >= Success
}

func (s LoginState) String() string {
	switch s {
	case None:
		return "none"
	case Checking:
		return "checking"
	case Success:
		return "success"
	case InvalidCredentials:
		return "invalid credentials"
	case TooManyAttempts:
		return "too many attempts"
	case BackendUnavailable:
		return "backend unavailable"
	default:
		return "unknown"
	}
}

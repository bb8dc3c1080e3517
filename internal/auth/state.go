package auth

import "slices"

// Phase names the position of a session in the login lifecycle.
type Phase int

const (
	// PhaseHydrating is the initial phase, before stored state has been read.
	PhaseHydrating Phase = iota
	// PhaseUnauthenticated means no identity is held.
	PhaseUnauthenticated
	// PhaseLoggingIn means a login attempt is in flight.
	PhaseLoggingIn
	// PhaseAuthenticated means an identity is held.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseHydrating:
		return "hydrating"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseLoggingIn:
		return "logging_in"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is the observable auth state of a browser session.
// IsAuthenticated always equals User != nil.
type State struct {
	Phase           Phase
	User            *Identity
	IsAuthenticated bool
	IsLoading       bool
	Error           string

	pending uint64
}

// InitialState returns the Hydrating state every machine starts in.
func InitialState() State {
	return settle(State{Phase: PhaseHydrating})
}

// Event is an input to Reduce.
type Event interface {
	event()
}

// Hydrated reports the result of reading stored state. User is nil when nothing was stored.
type Hydrated struct {
	User *Identity
}

// LoginStarted opens login attempt number Attempt; any earlier attempt is superseded.
type LoginStarted struct {
	Attempt uint64
}

// LoginSucceeded completes attempt Attempt.
type LoginSucceeded struct {
	Attempt uint64
	User    Identity
}

// LoginFailed completes attempt Attempt with an error message. Username is
// the name that was tried; it does not enter the state.
type LoginFailed struct {
	Attempt  uint64
	Username string
	Message  string
}

// LoggedOut drops the identity. Forced marks a reset caused by the catalog API rejecting the credential.
type LoggedOut struct {
	Forced bool
}

func (Hydrated) event()       {}
func (LoginStarted) event()   {}
func (LoginSucceeded) event() {}
func (LoginFailed) event()    {}
func (LoggedOut) event()      {}

const defaultLoginError = "Authentication failed"

// Reduce is the transition function. It is pure: events that do not apply to
// the current phase return the state unchanged.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case Hydrated:
		if s.Phase != PhaseHydrating {
			return s
		}
		if ev.User == nil {
			return settle(State{Phase: PhaseUnauthenticated, Error: s.Error})
		}
		return settle(State{Phase: PhaseAuthenticated, User: cloneIdentity(*ev.User), Error: s.Error})

	case LoginStarted:
		if s.Phase == PhaseHydrating || ev.Attempt == 0 {
			return s
		}
		next := s
		next.Phase = PhaseLoggingIn
		next.Error = ""
		next.pending = ev.Attempt
		return settle(next)

	case LoginSucceeded:
		if s.Phase != PhaseLoggingIn || ev.Attempt != s.pending {
			return s
		}
		return settle(State{Phase: PhaseAuthenticated, User: cloneIdentity(ev.User)})

	case LoginFailed:
		if s.Phase != PhaseLoggingIn || ev.Attempt != s.pending {
			return s
		}
		msg := ev.Message
		if msg == "" {
			msg = defaultLoginError
		}
		return settle(State{Phase: PhaseUnauthenticated, Error: msg})

	case LoggedOut:
		if s.Phase == PhaseUnauthenticated {
			return s
		}
		return settle(State{Phase: PhaseUnauthenticated})
	}
	return s
}

func settle(s State) State {
	s.IsAuthenticated = s.User != nil
	s.IsLoading = s.Phase == PhaseHydrating || s.Phase == PhaseLoggingIn
	if s.Phase != PhaseLoggingIn {
		s.pending = 0
	}
	return s
}

func cloneIdentity(id Identity) *Identity {
	out := Identity{Username: id.Username, Roles: append([]string(nil), id.Roles...)}
	return &out
}

func sameState(a, b State) bool {
	if a.Phase != b.Phase || a.Error != b.Error || a.pending != b.pending {
		return false
	}
	if (a.User == nil) != (b.User == nil) {
		return false
	}
	return a.User == nil || (a.User.Username == b.User.Username && slices.Equal(a.User.Roles, b.User.Roles))
}

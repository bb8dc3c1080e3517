package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitialStateIsHydrating(t *testing.T) {
	s := InitialState()
	assert.Equal(t, PhaseHydrating, s.Phase)
	assert.True(t, s.IsLoading)
	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
}

func TestReduceHydrated(t *testing.T) {
	alice := NewIdentity("alice", RoleUser)

	s := Reduce(InitialState(), Hydrated{})
	assert.Equal(t, PhaseUnauthenticated, s.Phase)
	assert.False(t, s.IsLoading)

	s = Reduce(InitialState(), Hydrated{User: &alice})
	assert.Equal(t, PhaseAuthenticated, s.Phase)
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, "alice", s.User.Username)

	// Hydration only applies once.
	again := Reduce(s, Hydrated{})
	assert.Equal(t, s, again)
}

func TestReduceLoginLifecycle(t *testing.T) {
	s := Reduce(InitialState(), Hydrated{})

	s = Reduce(s, LoginStarted{Attempt: 1})
	assert.Equal(t, PhaseLoggingIn, s.Phase)
	assert.True(t, s.IsLoading)
	assert.Empty(t, s.Error)

	s = Reduce(s, LoginFailed{Attempt: 1})
	assert.Equal(t, PhaseUnauthenticated, s.Phase)
	assert.Equal(t, "Authentication failed", s.Error)
	assert.Nil(t, s.User)

	s = Reduce(s, LoginStarted{Attempt: 2})
	assert.Empty(t, s.Error, "a new attempt clears the previous error")

	s = Reduce(s, LoginSucceeded{Attempt: 2, User: NewIdentity("admin", RoleAdmin, RoleUser)})
	assert.Equal(t, PhaseAuthenticated, s.Phase)
	assert.True(t, s.User.IsAdmin())
	assert.False(t, s.IsLoading)
}

func TestReduceIgnoresStaleCompletions(t *testing.T) {
	s := Reduce(InitialState(), Hydrated{})
	s = Reduce(s, LoginStarted{Attempt: 1})
	s = Reduce(s, LoginStarted{Attempt: 2})

	stale := Reduce(s, LoginSucceeded{Attempt: 1, User: NewIdentity("alice")})
	assert.Equal(t, s, stale)
	stale = Reduce(s, LoginFailed{Attempt: 1, Message: "late"})
	assert.Equal(t, s, stale)

	s = Reduce(s, LoginSucceeded{Attempt: 2, User: NewIdentity("bob", RoleUser)})
	assert.Equal(t, "bob", s.User.Username)
	assert.Equal(t, s, Reduce(s, LoginFailed{Attempt: 2}), "completion after settling is ignored")
}

func TestReduceLoginStartedIgnoredWhileHydrating(t *testing.T) {
	s := Reduce(InitialState(), LoginStarted{Attempt: 1})
	assert.Equal(t, PhaseHydrating, s.Phase)
}

func TestReduceLoggedOut(t *testing.T) {
	alice := NewIdentity("alice", RoleUser)
	s := Reduce(InitialState(), Hydrated{User: &alice})

	s = Reduce(s, LoggedOut{})
	assert.Equal(t, PhaseUnauthenticated, s.Phase)
	assert.Nil(t, s.User)
	assert.Empty(t, s.Error)

	assert.Equal(t, s, Reduce(s, LoggedOut{Forced: true}), "logout is idempotent")

	pending := Reduce(s, LoginStarted{Attempt: 3})
	out := Reduce(pending, LoggedOut{})
	assert.Equal(t, PhaseUnauthenticated, out.Phase)
	assert.Equal(t, out, Reduce(out, LoginSucceeded{Attempt: 3, User: alice}), "logout cancels the pending attempt")
}

func TestReduceAuthenticatedMatchesUser(t *testing.T) {
	alice := NewIdentity("alice", RoleUser)
	events := []Event{
		Hydrated{},
		LoginStarted{Attempt: 1},
		LoginSucceeded{Attempt: 1, User: alice},
		LoggedOut{},
		LoginStarted{Attempt: 2},
		LoginFailed{Attempt: 2, Message: "nope"},
		LoginStarted{Attempt: 3},
		LoginSucceeded{Attempt: 3, User: alice},
		LoginStarted{Attempt: 4},
		LoggedOut{Forced: true},
		LoggedOut{},
	}
	s := InitialState()
	for _, e := range events {
		s = Reduce(s, e)
		assert.Equal(t, s.User != nil, s.IsAuthenticated, "after %T", e)
		assert.Equal(t, s.Phase == PhaseHydrating || s.Phase == PhaseLoggingIn, s.IsLoading, "after %T", e)
	}
}

func TestReduceCopiesUser(t *testing.T) {
	alice := NewIdentity("alice", RoleUser)
	s := Reduce(InitialState(), Hydrated{User: &alice})
	alice.Roles[0] = RoleAdmin
	assert.False(t, s.User.IsAdmin())
}

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/catalog-console/catalog-console/internal/credstore"
	"github.com/catalog-console/catalog-console/internal/shared"
)

var (
	// ErrNotHydrated is returned by Login before stored state has been read.
	ErrNotHydrated = errors.New("auth: session not hydrated")
	// ErrSuperseded is returned by a login attempt that a newer attempt or a logout replaced.
	ErrSuperseded = errors.New("auth: login attempt superseded")
)

// Renewer moves the stored credential to a fresh browser session id and
// returns the store scoped to it.
type Renewer func(ctx context.Context) (credstore.Store, error)

// Listener observes a transition. It runs after the state has changed and must not call back into the machine.
type Listener func(from, to State, cause Event)

// Machine owns the auth state of one browser session. All mutation goes through
// Reduce; storage and verification happen only in the event producers below.
type Machine struct {
	service *Service
	renew   Renewer

	mu        sync.Mutex
	state     State
	attempts  uint64
	listeners map[int]Listener
	nextID    int

	// commit serializes the producers so that a storage write and the event
	// describing it are never interleaved with another producer.
	commit sync.Mutex
}

// NewMachine returns a machine in the Hydrating state.
func NewMachine(service *Service) *Machine {
	return &Machine{
		service:   service,
		state:     InitialState(),
		listeners: make(map[int]Listener),
	}
}

// RenewOnLogin makes every successful login move the credential to a fresh
// browser session id.
func (m *Machine) RenewOnLogin(r Renewer) {
	m.commit.Lock()
	m.renew = r
	m.commit.Unlock()
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers l and returns a function that removes it.
func (m *Machine) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Hydrate reads stored state. On a storage error the machine stays Hydrating.
func (m *Machine) Hydrate(ctx context.Context) error {
	m.commit.Lock()
	defer m.commit.Unlock()
	user, err := m.service.CurrentSession(ctx)
	if err != nil {
		return err
	}
	m.dispatch(Hydrated{User: user})
	return nil
}

// Login runs a login attempt. A newer call supersedes this one, on this
// machine or on any other machine of the same browser session: the older
// attempt then neither persists its credential nor changes the state.
func (m *Machine) Login(ctx context.Context, username, password string) (Identity, error) {
	m.commit.Lock()
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()
	started := m.dispatch(LoginStarted{Attempt: attempt})
	if started.pending != attempt {
		m.commit.Unlock()
		return Identity{}, ErrNotHydrated
	}
	generation, err := m.service.BeginAttempt(ctx)
	m.commit.Unlock()

	var (
		identity   Identity
		credential string
	)
	if err == nil {
		identity, credential, err = m.service.Authenticate(ctx, username, password)
	}

	m.commit.Lock()
	defer m.commit.Unlock()
	if !m.isPending(attempt) {
		return Identity{}, ErrSuperseded
	}
	if err == nil {
		err = m.service.PersistAttempt(ctx, generation, identity, credential)
	}
	if err == nil && m.renew != nil {
		err = m.renewSession(ctx)
	}
	if errors.Is(err, credstore.ErrStale) {
		return Identity{}, ErrSuperseded
	}
	if err != nil {
		m.dispatch(LoginFailed{Attempt: attempt, Username: username, Message: loginMessage(err)})
		return Identity{}, err
	}
	m.dispatch(LoginSucceeded{Attempt: attempt, User: identity})
	return identity, nil
}

// renewSession only reports ErrStale. Any other failure leaves the
// credential under the current browser session id, which stays usable.
func (m *Machine) renewSession(ctx context.Context) error {
	store, err := m.renew(ctx)
	switch {
	case err == nil:
		m.service.rebind(store)
		return nil
	case errors.Is(err, credstore.ErrStale):
		return err
	default:
		m.service.logger.Warn("renew browser session", slog.Any("error", err))
		return nil
	}
}

// Logout clears stored state and returns to Unauthenticated. Calling it again is a no-op.
func (m *Machine) Logout(ctx context.Context) {
	m.reset(ctx, false)
}

// Expire is the forced reset used when the catalog API rejects the stored
// credential. It goes through the same transition as Logout.
func (m *Machine) Expire(ctx context.Context) {
	m.reset(ctx, true)
}

// Credential returns the stored credential for outbound calls.
func (m *Machine) Credential(ctx context.Context) (string, bool) {
	return m.service.Credential(ctx)
}

func (m *Machine) reset(ctx context.Context, forced bool) {
	m.commit.Lock()
	defer m.commit.Unlock()
	m.service.Logout(ctx)
	m.dispatch(LoggedOut{Forced: forced})
}

func (m *Machine) isPending(attempt uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Phase == PhaseLoggingIn && m.state.pending == attempt
}

func (m *Machine) dispatch(e Event) State {
	m.mu.Lock()
	from := m.state
	to := Reduce(from, e)
	m.state = to
	var listeners []Listener
	if !sameState(from, to) {
		listeners = make([]Listener, 0, len(m.listeners))
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(from, to, e)
	}
	return to
}

func loginMessage(err error) string {
	if errors.Is(err, shared.ErrAuthentication) {
		return defaultLoginError
	}
	return "Login is unavailable, please try again"
}

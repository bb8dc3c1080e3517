package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/catalog-console/catalog-console/internal/credstore"
	"github.com/catalog-console/catalog-console/internal/shared"
)

// Service manages the stored credential and identity of one browser session.
type Service struct {
	mu       sync.RWMutex
	store    credstore.Store
	verifier Verifier
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService constructs a Service. A zero ttl selects credstore.DefaultTTL.
func NewService(store credstore.Store, verifier Verifier, ttl time.Duration, logger *slog.Logger) *Service {
	if verifier == nil {
		verifier = UsernameRoles{}
	}
	if ttl <= 0 {
		ttl = credstore.DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, verifier: verifier, ttl: ttl, logger: logger}
}

// Authenticate verifies the pair and returns the identity and encoded credential without storing them.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Identity, string, error) {
	identity, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return Identity{}, "", fmt.Errorf("verify %s: %w", username, err)
	}
	return identity, EncodeCredential(username, password), nil
}

// Persist writes credential and identity together.
func (s *Service) Persist(ctx context.Context, identity Identity, credential string) error {
	entries, err := credentialEntries(identity, credential)
	if err != nil {
		return err
	}
	if err := s.scope().Put(ctx, entries, s.ttl); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthentication, err)
	}
	return nil
}

// BeginAttempt opens a login attempt shared by every request of the browser
// session and returns its generation.
func (s *Service) BeginAttempt(ctx context.Context) (uint64, error) {
	generation, err := s.scope().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin login attempt: %w", err)
	}
	return generation, nil
}

// PersistAttempt is Persist for attempt generation. It fails with
// credstore.ErrStale when a newer attempt or a logout happened meanwhile,
// in this request or in any other request of the same browser session.
func (s *Service) PersistAttempt(ctx context.Context, generation uint64, identity Identity, credential string) error {
	entries, err := credentialEntries(identity, credential)
	if err != nil {
		return err
	}
	if err := s.scope().PutIfCurrent(ctx, generation, entries, s.ttl); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthentication, err)
	}
	return nil
}

func credentialEntries(identity Identity, credential string) (map[string]string, error) {
	payload, err := json.Marshal(identity)
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}
	return map[string]string{
		credstore.KeyToken: credential,
		credstore.KeyUser:  string(payload),
	}, nil
}

func (s *Service) scope() credstore.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

func (s *Service) rebind(store credstore.Store) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

// Login authenticates and persists in one step.
func (s *Service) Login(ctx context.Context, username, password string) (Identity, error) {
	identity, credential, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}
	if err := s.Persist(ctx, identity, credential); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Logout removes both stored entries and cancels open login attempts. It
// never fails; storage errors are logged.
func (s *Service) Logout(ctx context.Context) {
	if err := s.scope().Revoke(ctx, credstore.KeyToken, credstore.KeyUser); err != nil {
		s.logger.Warn("clear stored credentials", slog.Any("error", err))
	}
}

// CurrentSession returns the stored identity, or nil when there is none or it cannot be decoded.
// An identity without its credential counts as no session.
func (s *Service) CurrentSession(ctx context.Context) (*Identity, error) {
	values, err := s.scope().Get(ctx, credstore.KeyToken, credstore.KeyUser)
	if err != nil {
		return nil, err
	}
	token, raw := values[0], values[1]
	if raw == "" || token == "" {
		return nil, nil
	}
	var identity Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || identity.Username == "" {
		s.logger.Debug("discard unreadable identity", slog.Any("error", err))
		return nil, nil
	}
	identity = NewIdentity(identity.Username, identity.Roles...)
	return &identity, nil
}

// Credential returns the stored credential, if any.
func (s *Service) Credential(ctx context.Context) (string, bool) {
	values, err := s.scope().Get(ctx, credstore.KeyToken)
	if err != nil {
		s.logger.Warn("read stored credential", slog.Any("error", err))
		return "", false
	}
	return values[0], values[0] != ""
}

// HasRole reports whether the current session carries role.
func (s *Service) HasRole(ctx context.Context, role string) bool {
	identity, err := s.CurrentSession(ctx)
	if err != nil || identity == nil {
		return false
	}
	return identity.HasRole(role)
}

// IsAdmin reports whether the current session carries ADMIN.
func (s *Service) IsAdmin(ctx context.Context) bool {
	return s.HasRole(ctx, RoleAdmin)
}

package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/catalog-console/catalog-console/internal/shared"
)

// Verifier checks a username/password pair and resolves the identity behind it.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (Identity, error)
}

// Verifier modes accepted by NewVerifier.
const (
	ModePlaceholder = "placeholder"
	ModeStatic      = "static"
)

// NewVerifier selects the verifier for mode. users is only read in static mode.
func NewVerifier(mode, users string) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModePlaceholder:
		return UsernameRoles{}, nil
	case ModeStatic:
		return ParseStaticUsers(users)
	default:
		return nil, fmt.Errorf("auth: unknown verifier mode %q", mode)
	}
}

// UsernameRoles accepts any non-empty pair and derives roles from the username alone.
// It stands in for a real credential check; the catalog API still authenticates every call.
type UsernameRoles struct{}

// Verify implements Verifier.
func (UsernameRoles) Verify(_ context.Context, username, password string) (Identity, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Identity{}, shared.ErrAuthentication
	}
	return RolesForUsername(username), nil
}

// RolesForUsername maps "admin" to {ADMIN, USER} and everyone else to {USER}.
func RolesForUsername(username string) Identity {
	if username == "admin" {
		return NewIdentity(username, RoleAdmin, RoleUser)
	}
	return NewIdentity(username, RoleUser)
}

// StaticUser is one configured account.
type StaticUser struct {
	Hash  []byte
	Roles []string
}

// StaticUsers verifies against a fixed table of bcrypt hashed passwords.
// Unknown usernames are checked against a placeholder hash of the highest
// configured cost so they take as long as a wrong password.
type StaticUsers struct {
	users       map[string]StaticUser
	unknownHash []byte
}

// ParseStaticUsers reads "name:bcrypt-hash:ROLE|ROLE" entries separated by commas.
// Entries without roles get USER.
func ParseStaticUsers(entries string) (*StaticUsers, error) {
	users := make(map[string]StaticUser)
	maxCost := bcrypt.MinCost
	for _, entry := range strings.Split(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("auth: malformed user entry %q", entry)
		}
		cost, err := bcrypt.Cost([]byte(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("auth: user %s: %w", parts[0], err)
		}
		maxCost = max(maxCost, cost)
		roles := []string{RoleUser}
		if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
			roles = strings.Split(parts[2], "|")
		}
		users[parts[0]] = StaticUser{Hash: []byte(parts[1]), Roles: NewIdentity(parts[0], roles...).Roles}
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("auth: static mode requires at least one user")
	}
	unknownHash, err := bcrypt.GenerateFromPassword([]byte("unknown user"), maxCost)
	if err != nil {
		return nil, fmt.Errorf("auth: placeholder hash: %w", err)
	}
	return &StaticUsers{users: users, unknownHash: unknownHash}, nil
}

// Verify implements Verifier.
func (s *StaticUsers) Verify(_ context.Context, username, password string) (Identity, error) {
	user, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.unknownHash, []byte(password))
		return Identity{}, shared.ErrAuthentication
	}
	if err := bcrypt.CompareHashAndPassword(user.Hash, []byte(password)); err != nil {
		return Identity{}, shared.ErrAuthentication
	}
	return NewIdentity(username, user.Roles...), nil
}

// Usernames lists the configured accounts.
func (s *StaticUsers) Usernames() []string {
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	return names
}

// Roles returns the roles configured for username.
func (s *StaticUsers) Roles(username string) []string {
	return s.users[username].Roles
}

package auth

import (
	"encoding/base64"
	"slices"
	"strings"
)

// Role names understood by the catalog API.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Identity is the authenticated user's name plus role set.
type Identity struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// NewIdentity builds an Identity with a normalized role set (upper-case, unique, sorted).
func NewIdentity(username string, roles ...string) Identity {
	set := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" || slices.Contains(set, role) {
			continue
		}
		set = append(set, role)
	}
	slices.Sort(set)
	return Identity{Username: username, Roles: set}
}

// HasRole reports whether the identity carries role.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, strings.ToUpper(role))
}

// IsAdmin reports whether the identity carries the ADMIN role.
func (i Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// EncodeCredential produces the opaque value sent as "Authorization: Basic <credential>".
func EncodeCredential(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

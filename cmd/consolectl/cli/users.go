package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/catalog-console/catalog-console/internal/auth"
)

// HashPassword returns the bcrypt hash for password at the given cost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// UserEntry formats one AUTH_USERS entry.
func UserEntry(username, hash string, roles []string) (string, error) {
	if username == "" || strings.ContainsAny(username, ":,") {
		return "", fmt.Errorf("invalid username %q", username)
	}
	if len(roles) == 0 {
		return username + ":" + hash, nil
	}
	return username + ":" + hash + ":" + strings.Join(roles, "|"), nil
}

// CheckUsers parses an AUTH_USERS value and lists the accounts it defines.
func CheckUsers(entries string, out io.Writer) error {
	users, err := auth.ParseStaticUsers(entries)
	if err != nil {
		return err
	}
	names := users.Usernames()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s\t%s\n", name, strings.Join(users.Roles(name), ","))
	}
	return nil
}

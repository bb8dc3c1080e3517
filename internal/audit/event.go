// Package audit records login lifecycle events of browser sessions.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a recorded transition.
type Kind string

// Recorded kinds.
const (
	KindLogin       Kind = "login"
	KindLoginFailed Kind = "login_failed"
	KindLogout      Kind = "logout"
	KindExpired     Kind = "expired"
)

// Event is one audit record. ID makes redelivery idempotent.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	Username   string    `json:"username"`
	SessionID  string    `json:"session_id"`
	RemoteAddr string    `json:"remote_addr"`
	UserAgent  string    `json:"user_agent"`
	OccurredAt time.Time `json:"occurred_at"`
}

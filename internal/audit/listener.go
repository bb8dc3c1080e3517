package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/catalog-console/catalog-console/internal/auth"
	"github.com/catalog-console/catalog-console/internal/shared"
)

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Classify maps a machine transition to the audit kind it represents.
func Classify(from, to auth.State, cause auth.Event) (Kind, string, bool) {
	switch {
	case from.Phase == auth.PhaseLoggingIn && to.Phase == auth.PhaseAuthenticated:
		return KindLogin, to.User.Username, true
	case from.Phase == auth.PhaseLoggingIn && to.Phase == auth.PhaseUnauthenticated:
		failed, ok := cause.(auth.LoginFailed)
		if !ok {
			return "", "", false
		}
		return KindLoginFailed, failed.Username, true
	case from.Phase == auth.PhaseAuthenticated && to.Phase == auth.PhaseUnauthenticated:
		kind := KindLogout
		if out, ok := cause.(auth.LoggedOut); ok && out.Forced {
			kind = KindExpired
		}
		return kind, from.User.Username, true
	}
	return "", "", false
}

// ListenerFactory returns a factory for auth.Provider that records login,
// failed login, logout and expiry transitions.
func ListenerFactory(recorder Recorder, logger *slog.Logger) auth.ListenerFactory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := time.Now
	return func(r *http.Request) auth.Listener {
		ctx := context.WithoutCancel(r.Context())
		var sessionID string
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sessionID = sess.ID
		}
		remoteAddr := r.RemoteAddr
		userAgent := r.UserAgent()

		return func(from, to auth.State, cause auth.Event) {
			kind, username, ok := Classify(from, to, cause)
			if !ok {
				return
			}
			event := Event{
				ID:         uuid.New(),
				Kind:       kind,
				Username:   username,
				SessionID:  sessionID,
				RemoteAddr: remoteAddr,
				UserAgent:  userAgent,
				OccurredAt: now().UTC(),
			}
			if err := recorder.Record(ctx, event); err != nil {
				logger.Warn("record audit event", slog.String("kind", string(kind)), slog.Any("error", err))
			}
		}
	}
}

// LogRecorder writes events to the structured log.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder constructs a LogRecorder.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record implements Recorder.
func (l *LogRecorder) Record(ctx context.Context, event Event) error {
	l.logger.LogAttrs(ctx, slog.LevelInfo, "session audit",
		slog.String("event_id", event.ID.String()),
		slog.String("kind", string(event.Kind)),
		slog.String("username", event.Username),
		slog.String("session_id", event.SessionID),
		slog.String("remote_addr", event.RemoteAddr),
	)
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/catalog-console/catalog-console/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditSession persists one session audit event.
	TaskAuditSession = "audit:session"
)

// NewAuditSessionTask constructs an Asynq task. The event id doubles as the
// task id so an event is queued at most once.
func NewAuditSessionTask(event audit.Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditSession, data, asynq.TaskID(event.ID.String()), asynq.MaxRetry(5)), nil
}

// AuditStore persists audit events.
type AuditStore interface {
	Insert(ctx context.Context, event audit.Event) error
}

// AuditSessionJob processes TaskAuditSession tasks.
type AuditSessionJob struct {
	store  AuditStore
	logger *slog.Logger
}

// NewAuditSessionJob constructs the job handler.
func NewAuditSessionJob(store AuditStore, logger *slog.Logger) *AuditSessionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSessionJob{store: store, logger: logger}
}

// Handle implements asynq.HandlerFunc.
func (j *AuditSessionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var event audit.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		j.logger.Warn("discard malformed audit task", slog.Any("error", err))
		return fmt.Errorf("decode audit event: %v: %w", err, asynq.SkipRetry)
	}
	if err := j.store.Insert(ctx, event); err != nil {
		return err
	}
	j.logger.Debug("audit event stored", slog.String("event_id", event.ID.String()), slog.String("kind", string(event.Kind)))
	return nil
}

// TaskAuditPrune removes audit events older than the retention window.
const TaskAuditPrune = "audit:prune"

type auditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditPruneTask constructs the periodic prune task.
func NewAuditPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(auditPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// AuditPruner deletes events older than a cutoff.
type AuditPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// AuditPruneJob processes TaskAuditPrune tasks.
type AuditPruneJob struct {
	store  AuditPruner
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditPruneJob constructs the prune handler.
func NewAuditPruneJob(store AuditPruner, logger *slog.Logger) *AuditPruneJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditPruneJob{store: store, logger: logger, now: time.Now}
}

// Handle implements asynq.HandlerFunc.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload auditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode prune payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RetentionDays <= 0 {
		return fmt.Errorf("retention must be positive: %w", asynq.SkipRetry)
	}
	cutoff := j.now().AddDate(0, 0, -payload.RetentionDays)
	removed, err := j.store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	j.logger.Info("audit events pruned", slog.Int64("removed", removed), slog.Time("before", cutoff))
	return nil
}

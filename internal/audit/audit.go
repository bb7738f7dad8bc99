// Package audit records committed writes. The data layer emits events after a
// write succeeds; publishers deliver them to the Recorder, either in process
// or through the worker queue.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/internal/database/models"
	"gorm.io/gorm"
)

// TypeRecord is the asynq task type carrying one Event.
const TypeRecord = "audit:record"

type Action string

const (
	ActionCreated      Action = "created"
	ActionUpdated      Action = "updated"
	ActionDeleted      Action = "deleted"
	ActionReassigned   Action = "reassigned"
	ActionRegistered   Action = "organization.registered"
	ActionStatusChange Action = "organization.status_changed"
)

type Event struct {
	Action         Action    `json:"action"`
	Entity         string    `json:"entity"`
	EntityID       uuid.UUID `json:"entity_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Actor          string    `json:"actor,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers events. Publish never fails the write that produced the
// event; delivery errors are logged.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder persists events as AuditLog rows.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(ctx context.Context, e Event) error {
	if e.OrganizationID == uuid.Nil {
		return fmt.Errorf("audit event %s/%s without organization", e.Entity, e.Action)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	row := models.AuditLog{
		ID:             uuid.New(),
		OrganizationID: e.OrganizationID,
		Action:         string(e.Action),
		Entity:         e.Entity,
		EntityID:       e.EntityID,
		Actor:          e.Actor,
		OccurredAt:     e.OccurredAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// DirectPublisher records events synchronously. Used when no queue is
// configured.
type DirectPublisher struct {
	recorder *Recorder
	logger   *slog.Logger
}

func NewDirectPublisher(recorder *Recorder, logger *slog.Logger) *DirectPublisher {
	return &DirectPublisher{recorder: recorder, logger: logger}
}

func (p *DirectPublisher) Publish(ctx context.Context, e Event) {
	// the request context may already be cancelled once the write returned
	if err := p.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		p.logger.Error("audit record failed", "error", err, "entity", e.Entity, "action", e.Action)
	}
}

// QueuePublisher enqueues events for the worker.
type QueuePublisher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewQueuePublisher(client *asynq.Client, logger *slog.Logger) *QueuePublisher {
	return &QueuePublisher{client: client, logger: logger}
}

func (p *QueuePublisher) Publish(ctx context.Context, e Event) {
	task, err := NewTask(e)
	if err != nil {
		p.logger.Error("audit task build failed", "error", err)
		return
	}
	if _, err := p.client.EnqueueContext(context.WithoutCancel(ctx), task, asynq.Queue("low"), asynq.MaxRetry(5)); err != nil {
		p.logger.Error("audit enqueue failed", "error", err, "entity", e.Entity, "action", e.Action)
	}
}

func NewTask(e Event) (*asynq.Task, error) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecord, data), nil
}

// ParseTask decodes an event enqueued by QueuePublisher.
func ParseTask(t *asynq.Task) (Event, error) {
	var e Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return e, nil
}

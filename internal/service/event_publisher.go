package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/workflow"
	"github.com/ecas/approval-api/pkg/jobs"
)

// EventTypeTransitioned is the type of events emitted after every committed transition.
const EventTypeTransitioned = "permission.transitioned"

// TransitionEvent is the JSON document written to the event feed.
type TransitionEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	PermissionID string    `json:"permissionId"`
	ReferenceID  string    `json:"referenceId"`
	Category     string    `json:"category"`
	Action       string    `json:"action"`
	FromLevel    int       `json:"fromLevel"`
	ToLevel      int       `json:"toLevel"`
	Status       string    `json:"status"`
	ActorID      string    `json:"actorId"`
	ActorRole    string    `json:"actorRole"`
	At           time.Time `json:"at"`
}

type eventWriter interface {
	Enabled() bool
	Publish(ctx context.Context, key string, value interface{}) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// EventPublisher hands committed transitions to the job queue and writes them to the feed
// from the queue workers.
type EventPublisher struct {
	writer  eventWriter
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEventPublisher constructs a publisher. Attach a queue before publishing.
func NewEventPublisher(writer eventWriter, metrics *MetricsService, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{writer: writer, metrics: metrics, logger: logger}
}

// Attach sets the queue events are dispatched through.
func (p *EventPublisher) Attach(queue jobEnqueuer) {
	p.queue = queue
}

// PublishTransition enqueues the event for outcome. Failures are logged and dropped.
func (p *EventPublisher) PublishTransition(ctx context.Context, out *workflow.Outcome, actor models.Actor) {
	if p.queue == nil || p.writer == nil || !p.writer.Enabled() {
		return
	}
	event := TransitionEvent{
		ID:           uuid.NewString(),
		Type:         EventTypeTransitioned,
		PermissionID: out.Permission.ID,
		ReferenceID:  out.Permission.ReferenceID,
		Category:     string(out.Permission.Category),
		Action:       string(out.Action),
		FromLevel:    out.FromLevel,
		ToLevel:      out.ToLevel,
		Status:       string(out.Permission.Status),
		ActorID:      actor.ID,
		ActorRole:    string(actor.Role),
		At:           out.Closed.CreatedAt,
	}
	if out.Closed.DecidedAt != nil {
		event.At = *out.Closed.DecidedAt
	}

	if err := p.queue.Enqueue(jobs.Job{ID: event.ID, Type: EventTypeTransitioned, Payload: event}); err != nil {
		p.metrics.RecordEvent(false)
		p.logger.Warn("transition event dropped", zap.String("permission_id", event.PermissionID), zap.Error(err))
	}
}

// Handle is the queue handler writing one event to the feed.
func (p *EventPublisher) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(TransitionEvent)
	if !ok {
		p.logger.Error("unexpected event payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := p.writer.Publish(ctx, event.PermissionID, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.metrics.RecordEvent(true)
	return nil
}

// GiveUp records an event that could not be delivered.
func (p *EventPublisher) GiveUp(job jobs.Job, err error) {
	p.metrics.RecordEvent(false)
	p.logger.Warn("transition event abandoned", zap.String("job_id", job.ID), zap.Error(err))
}

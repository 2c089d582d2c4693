package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// TaskRemover deletes any queued task for a project. Removal is best-effort;
// a task that is already executing is left alone and the running job observes
// the cancelled status at its next checkpoint.
type TaskRemover interface {
	Remove(ctx context.Context, projectID string) error
}

// Canceller handles cancellation requests. Cancel is idempotent and always
// ends with a Cancelled broadcast, even for projects that never ran or were
// already terminal.
type Canceller struct {
	projects leads.ProjectStore
	queue    TaskRemover
	hub      broadcast.Broadcaster
	clock    leads.Clock
	logger   *zap.Logger
}

// NewCanceller wires the cancellation path.
func NewCanceller(projects leads.ProjectStore, queue TaskRemover, hub broadcast.Broadcaster, clock leads.Clock, logger *zap.Logger) *Canceller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Canceller{
		projects: projects,
		queue:    queue,
		hub:      hub,
		clock:    clock,
		logger:   logger,
	}
}

// Cancel removes any queued task, marks the project Cancelled, and broadcasts
// the Cancelled event. An unknown project still gets the broadcast.
func (c *Canceller) Cancel(ctx context.Context, projectID string) error {
	if err := c.queue.Remove(ctx, projectID); err != nil {
		c.logger.Warn("queued task removal failed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}

	p := leads.Project{ProjectID: projectID}
	if cur, err := c.projects.Get(ctx, projectID); err == nil {
		p = cur
	}

	markErr := c.projects.MarkCancelled(ctx, projectID)
	if markErr != nil && !errors.Is(markErr, leads.ErrNotFound) {
		c.logger.Error("failed to mark project cancelled",
			zap.String("project_id", projectID),
			zap.Error(markErr),
		)
	}

	c.hub.Broadcast(broadcast.StatusChange(p, leads.StatusCancelled, c.clock.Now()))
	c.logger.Info("project cancelled", zap.String("project_id", projectID))

	if markErr != nil && !errors.Is(markErr, leads.ErrNotFound) {
		return fmt.Errorf("mark cancelled: %w", markErr)
	}
	return nil
}

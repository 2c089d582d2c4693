// Package pipeline runs the project lifecycle: extraction, paced enrichment,
// persistence, and status broadcasting.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
	"github.com/leadgenhq/leadgen-engine/internal/storage"
)

// Orchestrator drives a project from Running to exactly one terminal state.
// Every status write hits the project store before the matching event is
// broadcast.
type Orchestrator struct {
	projects  leads.ProjectStore
	store     leads.LeadStore
	extractor leads.Extractor
	batcher   *Batcher
	hub       broadcast.Broadcaster
	snapshots storage.SnapshotStore
	clock     leads.Clock
	logger    *zap.Logger
}

// NewOrchestrator wires the pipeline. A nil snapshots store disables page
// archival.
func NewOrchestrator(
	projects leads.ProjectStore,
	store leads.LeadStore,
	extractor leads.Extractor,
	batcher *Batcher,
	hub broadcast.Broadcaster,
	snapshots storage.SnapshotStore,
	clock leads.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if snapshots == nil {
		snapshots = storage.NoOpSnapshotStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		projects:  projects,
		store:     store,
		extractor: extractor,
		batcher:   batcher,
		hub:       hub,
		snapshots: snapshots,
		clock:     clock,
		logger:    logger,
	}
}

// RunProject executes one project end to end. It returns a non-nil error only
// when the project ended Failed; cancellation and empty searches return nil.
func (o *Orchestrator) RunProject(ctx context.Context, p leads.Project) error {
	logger := o.logger.With(
		zap.String("project_id", p.ProjectID),
		zap.String("vendor_id", p.VendorID),
	)

	if err := o.setStatus(ctx, p, leads.StatusRunning); err != nil {
		return err
	}
	logger.Info("project started",
		zap.String("city", p.City),
		zap.String("category", p.BusinessCategory),
	)

	result, err := o.extractor.SearchBusinesses(ctx, leads.SearchQuery{
		VendorID:         p.VendorID,
		City:             p.City,
		BusinessCategory: p.BusinessCategory,
	})
	if err != nil {
		return o.fail(ctx, p, fmt.Errorf("search businesses: %w", err))
	}
	o.archiveSnapshot(ctx, p, result.RawHTML)

	if len(result.Candidates) == 0 {
		logger.Info("search returned no candidates")
		return o.finish(ctx, p)
	}

	if o.cancelled(ctx, p.ProjectID) {
		logger.Info("project cancelled before enrichment")
		return o.cancel(ctx, p)
	}

	enriched, err := o.batcher.Enrich(ctx, p, result.Candidates)
	if err != nil {
		return o.fail(ctx, p, fmt.Errorf("enrich candidates: %w", err))
	}

	if err := o.store.BulkInsert(ctx, enriched); err != nil {
		return o.fail(ctx, p, fmt.Errorf("insert leads: %w", err))
	}
	// A cancel that landed mid-enrichment does not discard the work above.
	// The leads stay persisted; the row just must not flip back to Finished.
	if o.cancelled(ctx, p.ProjectID) {
		logger.Info("project cancelled during enrichment, leads persisted",
			zap.Int("leads", len(enriched)),
		)
		return o.cancel(ctx, p)
	}
	logger.Info("project finished", zap.Int("leads", len(enriched)))
	return o.finish(ctx, p)
}

func (o *Orchestrator) setStatus(ctx context.Context, p leads.Project, status leads.Status) error {
	if err := o.projects.UpdateStatus(ctx, p.ProjectID, status); err != nil {
		return fmt.Errorf("update status %s: %w", status, err)
	}
	o.hub.Broadcast(broadcast.StatusChange(p, status, o.clock.Now()))
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, p leads.Project) error {
	return o.setStatus(ctx, p, leads.StatusFinished)
}

// cancel writes the Cancelled terminal state before broadcasting it. The
// store write covers the race where a cancel landed before this job recorded
// Running and the Running write clobbered it. MarkCancelled is idempotent,
// so re-marking a row the canceller already settled is harmless.
func (o *Orchestrator) cancel(ctx context.Context, p leads.Project) error {
	if err := o.projects.MarkCancelled(ctx, p.ProjectID); err != nil && !errors.Is(err, leads.ErrNotFound) {
		o.logger.Error("failed to record cancellation",
			zap.String("project_id", p.ProjectID),
			zap.Error(err),
		)
	}
	o.hub.Broadcast(broadcast.StatusChange(p, leads.StatusCancelled, o.clock.Now()))
	return nil
}

// fail records the Failed status and emits both the lifecycle event and a
// scrapingError carrying the cause. The original error is always returned.
func (o *Orchestrator) fail(ctx context.Context, p leads.Project, cause error) error {
	if err := o.projects.UpdateStatus(ctx, p.ProjectID, leads.StatusFailed); err != nil {
		o.logger.Error("failed to record failure",
			zap.String("project_id", p.ProjectID),
			zap.Error(err),
		)
	}
	o.hub.Broadcast(broadcast.StatusChange(p, leads.StatusFailed, o.clock.Now()))
	o.hub.Broadcast(broadcast.ScrapingError(p, cause.Error(), o.clock.Now()))
	return cause
}

// cancelled re-reads the project row. Unknown projects and read errors are
// treated as not cancelled so the job keeps making progress.
func (o *Orchestrator) cancelled(ctx context.Context, projectID string) bool {
	cur, err := o.projects.Get(ctx, projectID)
	if err != nil {
		if !errors.Is(err, leads.ErrNotFound) {
			o.logger.Warn("cancellation check failed",
				zap.String("project_id", projectID),
				zap.Error(err),
			)
		}
		return false
	}
	return cur.CancelRequested || cur.Status == leads.StatusCancelled
}

func (o *Orchestrator) archiveSnapshot(ctx context.Context, p leads.Project, raw []byte) {
	if len(raw) == 0 {
		return
	}
	path := fmt.Sprintf("snapshots/%s/%s.html", p.VendorID, p.ProjectID)
	uri, err := o.snapshots.PutObject(ctx, path, "text/html", raw)
	if err != nil {
		o.logger.Warn("snapshot archive failed",
			zap.String("project_id", p.ProjectID),
			zap.Error(err),
		)
		return
	}
	if uri != "" {
		o.logger.Debug("snapshot archived", zap.String("uri", uri))
	}
}

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// BatcherConfig controls enrichment pacing.
type BatcherConfig struct {
	// BatchSize is the number of candidates enriched concurrently.
	BatchSize int
	// BatchDelay is the pause inserted between consecutive batches.
	BatchDelay time.Duration
}

func (c *BatcherConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 3
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = 5 * time.Second
	}
}

// Batcher enriches candidates in fixed-size concurrent batches, emitting a
// partial-results event after each batch completes. A per-site enrichment
// failure never fails the batch; the candidate keeps a zero contact record.
type Batcher struct {
	cfg       BatcherConfig
	extractor leads.Extractor
	hub       broadcast.Broadcaster
	sleeper   leads.Sleeper
	clock     leads.Clock
	logger    *zap.Logger
}

// NewBatcher constructs a Batcher. Zero config fields fall back to a batch
// size of 3 and a 5 second delay.
func NewBatcher(cfg BatcherConfig, extractor leads.Extractor, hub broadcast.Broadcaster, sleeper leads.Sleeper, clock leads.Clock, logger *zap.Logger) *Batcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{
		cfg:       cfg,
		extractor: extractor,
		hub:       hub,
		sleeper:   sleeper,
		clock:     clock,
		logger:    logger,
	}
}

// Enrich turns every candidate into a lead, preserving input order. Batches
// run sequentially with the configured delay between them; candidates inside
// a batch are enriched concurrently. It returns early only when ctx ends.
func (b *Batcher) Enrich(ctx context.Context, p leads.Project, candidates []leads.BusinessRecord) ([]leads.Lead, error) {
	out := make([]leads.Lead, 0, len(candidates))

	for start := 0; start < len(candidates); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		batch := b.enrichBatch(ctx, p, candidates[start:end])
		out = append(out, batch...)
		b.hub.Broadcast(broadcast.PartialResults(p, batch, b.clock.Now()))

		if end < len(candidates) {
			b.sleeper.Sleep(ctx, b.cfg.BatchDelay)
			if err := ctx.Err(); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func (b *Batcher) enrichBatch(ctx context.Context, p leads.Project, batch []leads.BusinessRecord) []leads.Lead {
	records := make([]leads.EnrichmentRecord, len(batch))

	var wg sync.WaitGroup
	for i, candidate := range batch {
		if candidate.WebsiteURL == "" {
			continue
		}
		wg.Add(1)
		go func(i int, websiteURL string) {
			defer wg.Done()
			enr, err := b.extractor.EnrichWebsite(ctx, websiteURL)
			if err != nil {
				b.logger.Warn("website enrichment failed",
					zap.String("project_id", p.ProjectID),
					zap.String("website", websiteURL),
					zap.Error(err),
				)
				return
			}
			records[i] = enr
		}(i, candidate.WebsiteURL)
	}
	wg.Wait()

	out := make([]leads.Lead, len(batch))
	for i, candidate := range batch {
		out[i] = leads.MakeLead(candidate, records[i])
	}
	return out
}

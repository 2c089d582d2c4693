package leads

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a project does not exist.
var ErrNotFound = errors.New("project not found")

// ProjectStore is the single source of truth for project lifecycle state.
// Both the orchestrator and the cancellation handler overwrite fields with
// the latest value; last write wins.
type ProjectStore interface {
	Create(ctx context.Context, p Project) error
	Get(ctx context.Context, projectID string) (Project, error)
	UpdateStatus(ctx context.Context, projectID string, status Status) error
	// MarkCancelled sets cancel_requested and forces status to Cancelled in
	// one write. It succeeds even when the project is already terminal.
	MarkCancelled(ctx context.Context, projectID string) error
}

// LeadStore persists enriched business records.
type LeadStore interface {
	// BulkInsert writes leads in one round trip. Partial inserts are
	// acceptable on failure, but any error fails the calling job.
	BulkInsert(ctx context.Context, records []Lead) error
	ListByVendorCategory(ctx context.Context, vendorID, category string) ([]Lead, error)
}

// SearchQuery identifies one results-page extraction.
type SearchQuery struct {
	VendorID         string
	City             string
	BusinessCategory string
}

// SearchResult carries the parsed candidates plus the raw rendered page for
// optional archival.
type SearchResult struct {
	Candidates []BusinessRecord
	RawHTML    []byte
}

// Extractor is the external collaborator producing raw candidates from a
// search query and a contact record from a business website. Implementations
// convert navigation and render failures into empty results; a returned error
// means something unexpected broke.
type Extractor interface {
	SearchBusinesses(ctx context.Context, query SearchQuery) (SearchResult, error)
	EnrichWebsite(ctx context.Context, websiteURL string) (EnrichmentRecord, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper waits for a pacing delay, returning early if the context ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// IDGenerator produces project IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

package extract

import (
	"context"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// Adapter combines the rendered-search extractor with the website enricher
// behind the single interface the pipeline consumes.
type Adapter struct {
	maps     *MapsExtractor
	enricher *WebsiteEnricher
}

// NewAdapter builds the combined extractor.
func NewAdapter(maps *MapsExtractor, enricher *WebsiteEnricher) *Adapter {
	return &Adapter{maps: maps, enricher: enricher}
}

func (a *Adapter) SearchBusinesses(ctx context.Context, query leads.SearchQuery) (leads.SearchResult, error) {
	return a.maps.SearchBusinesses(ctx, query)
}

func (a *Adapter) EnrichWebsite(ctx context.Context, websiteURL string) (leads.EnrichmentRecord, error) {
	return a.enricher.EnrichWebsite(ctx, websiteURL)
}

// Close releases the shared browser.
func (a *Adapter) Close(ctx context.Context) error {
	return a.maps.Close(ctx)
}

// NoOp is an extractor that finds nothing. It backs local development runs
// where no browser is installed.
type NoOp struct{}

func (NoOp) SearchBusinesses(context.Context, leads.SearchQuery) (leads.SearchResult, error) {
	return leads.SearchResult{}, nil
}

func (NoOp) EnrichWebsite(context.Context, string) (leads.EnrichmentRecord, error) {
	return leads.EnrichmentRecord{}, nil
}

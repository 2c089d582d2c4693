package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

type leadPool interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// LeadStore writes enriched leads into Postgres.
type LeadStore struct {
	pool leadPool
}

// NewLeadStore constructs a store on an existing pool.
func NewLeadStore(pool leadPool) (*LeadStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LeadStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *LeadStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertLeadSQL = `
INSERT INTO leads (
	place_id,
	store_name,
	address,
	category,
	project_category,
	phone,
	contact_url,
	website_url,
	rating_text,
	stars,
	number_of_reviews,
	image_url,
	city,
	vendor_id,
	about,
	logo_url,
	email,
	social_links
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

// BulkInsert writes all records in a single batched round trip. Inserts are
// not wrapped in a transaction: a partial insert on failure is acceptable,
// but any error is reported so the caller fails the job.
func (s *LeadStore) BulkInsert(ctx context.Context, records []leads.Lead) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		socialJSON, err := json.Marshal(rec.SocialLinks)
		if err != nil {
			return fmt.Errorf("marshal social links: %w", err)
		}
		batch.Queue(insertLeadSQL,
			rec.PlaceID,
			rec.StoreName,
			rec.Address,
			rec.Category,
			rec.ProjectCategory,
			rec.Phone,
			rec.ContactURL,
			rec.WebsiteURL,
			rec.RatingText,
			rec.Stars,
			rec.NumberOfReviews,
			rec.ImageURL,
			rec.City,
			rec.VendorID,
			rec.About,
			rec.LogoURL,
			rec.Email,
			socialJSON,
		)
	}
	results := s.pool.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert lead: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close lead batch: %w", err)
	}
	return nil
}

// ListByVendorCategory returns leads scoped to one vendor, optionally
// filtered by project category.
func (s *LeadStore) ListByVendorCategory(ctx context.Context, vendorID, category string) ([]leads.Lead, error) {
	query := `
SELECT place_id, store_name, address, category, project_category, phone, contact_url,
	website_url, rating_text, stars, number_of_reviews, image_url, city, vendor_id,
	about, logo_url, email, social_links
FROM leads
WHERE vendor_id = $1 AND ($2 = '' OR project_category = $2)
ORDER BY store_name`
	rows, err := s.pool.Query(ctx, query, vendorID, category)
	if err != nil {
		return nil, fmt.Errorf("select leads: %w", err)
	}
	defer rows.Close()

	var out []leads.Lead
	for rows.Next() {
		var rec leads.Lead
		var socialJSON []byte
		if err := rows.Scan(
			&rec.PlaceID,
			&rec.StoreName,
			&rec.Address,
			&rec.Category,
			&rec.ProjectCategory,
			&rec.Phone,
			&rec.ContactURL,
			&rec.WebsiteURL,
			&rec.RatingText,
			&rec.Stars,
			&rec.NumberOfReviews,
			&rec.ImageURL,
			&rec.City,
			&rec.VendorID,
			&rec.About,
			&rec.LogoURL,
			&rec.Email,
			&socialJSON,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		if len(socialJSON) > 0 {
			if err := json.Unmarshal(socialJSON, &rec.SocialLinks); err != nil {
				return nil, fmt.Errorf("unmarshal social links: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return out, nil
}

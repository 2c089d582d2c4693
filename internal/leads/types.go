// Package leads defines core types shared across subsystems.
package leads

import (
	"strconv"
	"strings"
	"time"
)

// Status represents the lifecycle state of a project.
type Status string

// Project status values persisted in the project store. Running is the only
// non-terminal state; a project never leaves a terminal state.
const (
	StatusRunning   Status = "Running"
	StatusFinished  Status = "Finished"
	StatusCancelled Status = "Cancelled"
	StatusFailed    Status = "Failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// Project is a unit of scraping work scoped to one vendor, city and category.
type Project struct {
	ProjectID        string    `json:"project_id"`
	VendorID         string    `json:"vendor_id"`
	ProjectName      string    `json:"project_name"`
	City             string    `json:"city"`
	BusinessCategory string    `json:"business_category"`
	Status           Status    `json:"status"`
	CancelRequested  bool      `json:"cancel_requested"`
	CreatedAt        time.Time `json:"created_at"`
}

// BusinessRecord is one raw candidate parsed from a results page. It is never
// persisted on its own; it is always folded into a Lead.
type BusinessRecord struct {
	PlaceID         string `json:"place_id"`
	StoreName       string `json:"store_name"`
	Address         string `json:"address"`
	Category        string `json:"category"`
	ProjectCategory string `json:"project_category"`
	Phone           string `json:"phone"`
	ContactURL      string `json:"contact_url"`
	WebsiteURL      string `json:"website_url"`
	RatingText      string `json:"rating_text"`
	Stars           float64 `json:"stars"`
	NumberOfReviews int    `json:"number_of_reviews"`
	ImageURL        string `json:"image_url"`
	City            string `json:"city"`
	VendorID        string `json:"vendor_id"`
}

// SocialLinks is the fixed four-key social mapping extracted from a business
// website. Absent links are empty strings, never omitted.
type SocialLinks struct {
	YouTube   string `json:"youtube"`
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	LinkedIn  string `json:"linkedin"`
}

// EnrichmentRecord holds the per-website contact details. The zero value is
// the canonical "nothing found" record; fields are empty strings, never nil,
// so the merge into a Lead stays total.
type EnrichmentRecord struct {
	About       string      `json:"about"`
	LogoURL     string      `json:"logo_url"`
	Email       string      `json:"email"`
	SocialLinks SocialLinks `json:"social_links"`
}

// Lead is the durable union of a BusinessRecord and its EnrichmentRecord,
// created only at the end of a successful batch and never mutated after
// persistence.
type Lead struct {
	BusinessRecord
	EnrichmentRecord
}

// MakeLead merges a raw candidate with its enrichment result. It is total:
// every field of both inputs lands in the Lead, and a zero EnrichmentRecord
// produces a Lead with empty contact fields.
func MakeLead(rec BusinessRecord, enr EnrichmentRecord) Lead {
	return Lead{BusinessRecord: rec, EnrichmentRecord: enr}
}

// ParseRating splits a rendered rating label such as "4.5 stars 120 Reviews"
// into numeric stars and review count. Malformed input leaves zero values.
func ParseRating(ratingText string) (stars float64, reviews int) {
	before, after, found := strings.Cut(ratingText, "stars")
	if !found {
		return 0, 0
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(before), 64); err == nil {
		stars = v
	}
	after = strings.ReplaceAll(after, "Reviews", "")
	after = strings.ReplaceAll(after, ",", "")
	if v, err := strconv.Atoi(strings.TrimSpace(after)); err == nil {
		reviews = v
	}
	return stars, reviews
}

// Package broadcast defines the lifecycle and progress events emitted by the
// pipeline, plus the non-blocking hub that fans them out to live subscribers.
package broadcast

import (
	"errors"
	"time"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// Event names delivered to subscribers. Status names match the persisted
// project status values so clients can mirror them directly.
const (
	EventRunning        = "Running"
	EventFinished       = "Finished"
	EventCancelled      = "Cancelled"
	EventFailed         = "Failed"
	EventPartialResults = "partial-results"
	EventScrapingError  = "scrapingError"
)

// Event captures a single notification. Delivery is fire-and-forget,
// at-most-once; there is no replay for late subscribers.
type Event struct {
	// Name is one of the event name constants above.
	Name string `json:"event"`
	// ProjectID scopes the event to a project.
	ProjectID string `json:"project_id"`
	// VendorID optionally carries the tenant scope.
	VendorID string `json:"vendor_id,omitempty"`
	// Status is set for lifecycle events.
	Status leads.Status `json:"status,omitempty"`
	// Leads carries the enriched batch for partial-results events.
	Leads []leads.Lead `json:"leads,omitempty"`
	// Message carries error text for scrapingError events.
	Message string `json:"message,omitempty"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
}

// StatusChange builds a lifecycle event for the given project.
func StatusChange(p leads.Project, status leads.Status, ts time.Time) Event {
	return Event{
		Name:      string(status),
		ProjectID: p.ProjectID,
		VendorID:  p.VendorID,
		Status:    status,
		TS:        ts,
	}
}

// PartialResults builds a per-batch progress event.
func PartialResults(p leads.Project, batch []leads.Lead, ts time.Time) Event {
	return Event{
		Name:      EventPartialResults,
		ProjectID: p.ProjectID,
		VendorID:  p.VendorID,
		Leads:     batch,
		TS:        ts,
	}
}

// ScrapingError builds a terminal pipeline error event.
func ScrapingError(p leads.Project, message string, ts time.Time) Event {
	return Event{
		Name:      EventScrapingError,
		ProjectID: p.ProjectID,
		VendorID:  p.VendorID,
		Message:   message,
		TS:        ts,
	}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Name == "" {
		return errors.New("event name is required")
	}
	if e.ProjectID == "" {
		return errors.New("project id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Name {
	case EventRunning, EventFinished, EventCancelled, EventFailed:
		if e.Status == "" {
			return errors.New("status event requires status")
		}
	case EventPartialResults:
	case EventScrapingError:
		if e.Message == "" {
			return errors.New("scrapingError requires a message")
		}
	default:
		return errors.New("unknown event name " + e.Name)
	}
	return nil
}

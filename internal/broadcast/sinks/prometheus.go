package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// PrometheusSink exports pipeline metrics derived from broadcast events. It
// owns the collectors for project terminal states, batch progress, and
// pipeline errors.
type PrometheusSink struct {
	projectsStarted   prometheus.Counter
	projectsCompleted *prometheus.CounterVec
	projectsRunning   prometheus.Gauge
	batchesTotal      prometheus.Counter
	leadsTotal        prometheus.Counter
	scrapingErrors    prometheus.Counter

	// running tracks which projects have emitted a Running event, so a
	// terminal event for a project that never ran (a cancelled queued
	// project, or a repeated cancel) cannot drive the gauge negative.
	mu      sync.Mutex
	running map[string]struct{}
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		projectsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgen_projects_started_total",
			Help: "Total projects that have started processing.",
		}),
		projectsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_projects_completed_total",
			Help: "Total projects finished partitioned by terminal status.",
		}, []string{"status"}),
		projectsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_projects_running",
			Help: "Current number of running projects. At most one by design.",
		}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgen_enrichment_batches_total",
			Help: "Total enrichment batches completed.",
		}),
		leadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgen_leads_enriched_total",
			Help: "Total leads carried by partial-results events.",
		}),
		scrapingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgen_scraping_errors_total",
			Help: "Total terminal pipeline errors broadcast to subscribers.",
		}),
		running: make(map[string]struct{}),
	}
	for _, collector := range []prometheus.Collector{
		s.projectsStarted,
		s.projectsCompleted,
		s.projectsRunning,
		s.batchesTotal,
		s.leadsTotal,
		s.scrapingErrors,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register broadcast collector: %w", err)
		}
	}
	return s, nil
}

// Deliver updates collectors from one event.
func (s *PrometheusSink) Deliver(_ context.Context, evt broadcast.Event) error {
	switch evt.Name {
	case broadcast.EventRunning:
		s.projectsStarted.Inc()
		if s.markRunning(evt.ProjectID) {
			s.projectsRunning.Inc()
		}
	case broadcast.EventFinished, broadcast.EventCancelled, broadcast.EventFailed:
		s.projectsCompleted.WithLabelValues(string(terminalStatus(evt))).Inc()
		if s.clearRunning(evt.ProjectID) {
			s.projectsRunning.Dec()
		}
	case broadcast.EventPartialResults:
		s.batchesTotal.Inc()
		s.leadsTotal.Add(float64(len(evt.Leads)))
	case broadcast.EventScrapingError:
		s.scrapingErrors.Inc()
	}
	return nil
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func (s *PrometheusSink) markRunning(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[projectID]; ok {
		return false
	}
	s.running[projectID] = struct{}{}
	return true
}

func (s *PrometheusSink) clearRunning(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[projectID]; !ok {
		return false
	}
	delete(s.running, projectID)
	return true
}

func terminalStatus(evt broadcast.Event) leads.Status {
	if evt.Status != "" {
		return evt.Status
	}
	return leads.Status(evt.Name)
}

package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (s *captureSink) Deliver(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, evt := range s.events {
		out[i] = evt.Name
	}
	return out
}

func testProject() leads.Project {
	return leads.Project{
		ProjectID:        "p1",
		VendorID:         "v1",
		City:             "Austin",
		BusinessCategory: "bakery",
		Status:           leads.StatusRunning,
	}
}

func TestHubDeliversEventsInOrder(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	now := time.Unix(1700000000, 0).UTC()
	p := testProject()
	hub.Broadcast(StatusChange(p, leads.StatusRunning, now))
	hub.Broadcast(PartialResults(p, []leads.Lead{{}}, now))
	hub.Broadcast(StatusChange(p, leads.StatusFinished, now))

	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, []string{EventRunning, EventPartialResults, EventFinished}, sink.names())
	require.True(t, sink.closed)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Broadcast(Event{Name: EventRunning}) // missing project id and timestamp
	hub.Broadcast(Event{})

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.names())
}

func TestHubSinkErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	failing := &captureSink{err: errors.New("subscriber gone")}
	healthy := &captureSink{}
	hub := NewHub(Config{}, failing, healthy)

	now := time.Unix(1700000000, 0).UTC()
	p := testProject()
	hub.Broadcast(StatusChange(p, leads.StatusRunning, now))
	hub.Broadcast(StatusChange(p, leads.StatusFailed, now))

	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, []string{EventRunning, EventFailed}, healthy.names())
}

func TestHubBroadcastAfterCloseIsNoOp(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Broadcast(StatusChange(testProject(), leads.StatusRunning, time.Now().UTC()))
	require.Empty(t, sink.names())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	p := testProject()

	require.NoError(t, StatusChange(p, leads.StatusCancelled, now).Validate())
	require.NoError(t, PartialResults(p, nil, now).Validate())
	require.NoError(t, ScrapingError(p, "render failed", now).Validate())

	require.Error(t, Event{Name: "bogus", ProjectID: "p1", TS: now}.Validate())
	require.Error(t, Event{Name: EventScrapingError, ProjectID: "p1", TS: now}.Validate())
	require.Error(t, Event{Name: EventRunning, ProjectID: "p1", TS: now}.Validate())
}

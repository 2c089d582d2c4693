package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

func TestRunProjectTaskRoundTrip(t *testing.T) {
	p := leads.Project{
		ProjectID:        "proj-1",
		VendorID:         "vendor-1",
		ProjectName:      "sf coffee",
		City:             "San Francisco",
		BusinessCategory: "coffee",
		Status:           leads.StatusRunning,
		CreatedAt:        time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}

	task, err := NewRunProjectTask(p)
	require.NoError(t, err)
	require.Equal(t, TypeRunProject, task.Type())

	got, err := DecodeRunProjectTask(task)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestDecodeRunProjectTaskRejectsBadPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"garbage", []byte("not json")},
		{"missing project id", []byte(`{"vendor_id":"v1"}`)},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRunProjectTask(asynq.NewTask(TypeRunProject, tt.payload))
			require.Error(t, err)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Addr: "localhost:6379"}
	cfg.applyDefaults()
	require.Equal(t, "projects", cfg.Queue)
	require.Equal(t, 24*time.Hour, cfg.Retention)
}

func TestWorkerConfigPinsConcurrency(t *testing.T) {
	svc := NewService(Config{Addr: "localhost:6379"}, nil)
	defer func() { _ = svc.Close() }()

	cfg := svc.serverConfig()
	require.Equal(t, 1, cfg.Concurrency)
	require.Equal(t, map[string]int{"projects": 1}, cfg.Queues)
}

// overlapRunner records whether two runs were ever in flight at once.
type overlapRunner struct {
	active    atomic.Int32
	overlap   atomic.Bool
	completed atomic.Int32
}

func (r *overlapRunner) RunProject(context.Context, leads.Project) error {
	if r.active.Add(1) > 1 {
		r.overlap.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	r.active.Add(-1)
	r.completed.Add(1)
	return nil
}

func TestWorkerRunsOneProjectAtATime(t *testing.T) {
	svc := NewService(Config{Addr: "localhost:6379"}, nil)
	defer func() { _ = svc.Close() }()

	runner := &overlapRunner{}
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRunProject, svc.handleRunProject(runner))

	const jobs = 8
	errs := make(chan error, jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		task, err := NewRunProjectTask(leads.Project{ProjectID: fmt.Sprintf("proj-%d", i)})
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- mux.ProcessTask(context.Background(), task)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.False(t, runner.overlap.Load())
	require.Equal(t, int32(jobs), runner.completed.Load())
}

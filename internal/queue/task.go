// Package queue provides the durable single-worker task queue backing project
// execution. Tasks live in Redis; one worker drains them sequentially so two
// projects never run concurrently.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// TypeRunProject is the task type for a full project run.
const TypeRunProject = "project:run"

// NewRunProjectTask encodes a project into a queue task. The task ID is the
// project ID so cancellation can address queued work directly.
func NewRunProjectTask(p leads.Project) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal project payload: %w", err)
	}
	return asynq.NewTask(TypeRunProject, payload), nil
}

// DecodeRunProjectTask recovers the project from a task payload.
func DecodeRunProjectTask(t *asynq.Task) (leads.Project, error) {
	var p leads.Project
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return leads.Project{}, fmt.Errorf("unmarshal project payload: %w", err)
	}
	if p.ProjectID == "" {
		return leads.Project{}, fmt.Errorf("project payload missing project_id")
	}
	return p, nil
}

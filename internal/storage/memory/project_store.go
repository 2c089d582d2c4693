// Package memory provides store implementations for development and testing.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// ProjectStore keeps project lifecycle state in a mutex-guarded map.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]leads.Project
}

// NewProjectStore constructs a ProjectStore.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[string]leads.Project)}
}

// Create stores a new project.
func (s *ProjectStore) Create(_ context.Context, p leads.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[p.ProjectID]; exists {
		return errors.New("project already exists")
	}
	s.projects[p.ProjectID] = p
	return nil
}

// Get fetches a project by ID.
func (s *ProjectStore) Get(_ context.Context, projectID string) (leads.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return leads.Project{}, leads.ErrNotFound
	}
	return p, nil
}

// UpdateStatus overwrites the project status; last write wins.
func (s *ProjectStore) UpdateStatus(_ context.Context, projectID string, status leads.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return leads.ErrNotFound
	}
	p.Status = status
	s.projects[projectID] = p
	return nil
}

// MarkCancelled sets the cancel flag and forces status to Cancelled. It is
// idempotent and succeeds for projects that are already terminal.
func (s *ProjectStore) MarkCancelled(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return leads.ErrNotFound
	}
	p.CancelRequested = true
	p.Status = leads.StatusCancelled
	s.projects[projectID] = p
	return nil
}

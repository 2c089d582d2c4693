// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// PoolConfig controls the Postgres connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type projectPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ProjectStore persists project lifecycle rows in Postgres. Writes are plain
// last-write-wins UPDATEs; the orchestrator and the cancellation handler both
// overwrite fields with the latest value, no row locks.
type ProjectStore struct {
	pool projectPool
}

// NewPool builds a pgx pool from config, shared by both stores.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// NewProjectStore constructs a store on an existing pool. The pool parameter
// is an interface so tests can substitute pgxmock.
func NewProjectStore(pool projectPool) (*ProjectStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProjectStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ProjectStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new project row.
func (s *ProjectStore) Create(ctx context.Context, p leads.Project) error {
	if p.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	query := `
INSERT INTO projects (
	project_id,
	vendor_id,
	project_name,
	city,
	business_category,
	status,
	cancel_requested,
	created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := s.pool.Exec(ctx, query,
		p.ProjectID,
		p.VendorID,
		p.ProjectName,
		p.City,
		p.BusinessCategory,
		string(p.Status),
		p.CancelRequested,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// Get loads a project row by ID.
func (s *ProjectStore) Get(ctx context.Context, projectID string) (leads.Project, error) {
	query := `
SELECT project_id, vendor_id, project_name, city, business_category, status, cancel_requested, created_at
FROM projects
WHERE project_id = $1`
	var p leads.Project
	var status string
	err := s.pool.QueryRow(ctx, query, projectID).Scan(
		&p.ProjectID,
		&p.VendorID,
		&p.ProjectName,
		&p.City,
		&p.BusinessCategory,
		&status,
		&p.CancelRequested,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leads.Project{}, leads.ErrNotFound
		}
		return leads.Project{}, fmt.Errorf("select project: %w", err)
	}
	p.Status = leads.Status(status)
	return p, nil
}

// UpdateStatus overwrites the persisted status.
func (s *ProjectStore) UpdateStatus(ctx context.Context, projectID string, status leads.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET status = $1 WHERE project_id = $2`,
		string(status), projectID,
	)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

// MarkCancelled sets the cancel flag and forces status to Cancelled in one
// write, regardless of the current state.
func (s *ProjectStore) MarkCancelled(ctx context.Context, projectID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET cancel_requested = TRUE, status = $1 WHERE project_id = $2`,
		string(leads.StatusCancelled), projectID,
	)
	if err != nil {
		return fmt.Errorf("mark project cancelled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

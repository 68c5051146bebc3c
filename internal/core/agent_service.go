package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AgentDirectory resolves identities supplied by the authentication layer.
type AgentDirectory interface {
	// FindByUsername finds an agent by login name.
	FindByUsername(ctx context.Context, username string) (*Agent, error)

	// GetAgent returns an agent by id.
	GetAgent(ctx context.Context, id uuid.UUID) (*Agent, error)
}

type agentDirectory struct {
	pool *pgxpool.Pool
}

// NewAgentDirectory constructs an AgentDirectory backed by PostgreSQL.
func NewAgentDirectory(pool *pgxpool.Pool) AgentDirectory {
	return &agentDirectory{pool: pool}
}

func (s *agentDirectory) FindByUsername(ctx context.Context, username string) (*Agent, error) {
	a := &Agent{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, role, created_at
		FROM agents
		WHERE username = $1`,
		username,
	).Scan(&a.ID, &a.Username, &a.Role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "agent", ID: username}
		}
		return nil, fmt.Errorf("failed to find agent %q: %w", username, err)
	}
	return a, nil
}

func (s *agentDirectory) GetAgent(ctx context.Context, id uuid.UUID) (*Agent, error) {
	return getAgent(ctx, s.pool, id)
}

func getAgent(ctx context.Context, q pgxQuerier, id uuid.UUID) (*Agent, error) {
	a := &Agent{}
	err := q.QueryRow(ctx, `
		SELECT id, username, role, created_at
		FROM agents
		WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Username, &a.Role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("agent", id)
		}
		return nil, fmt.Errorf("failed to load agent %s: %w", id, err)
	}
	return a, nil
}

package rbac

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Authorizer answers capability questions for a tenant actor.
type Authorizer interface {
	Capabilities(ctx context.Context, tenantID, actorID int64) ([]string, error)
}

// Service resolves capabilities from capability_grants.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Capabilities lists the capabilities granted to the actor, including tenant-wide grants.
func (s *Service) Capabilities(ctx context.Context, tenantID, actorID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT capability FROM capability_grants
WHERE tenant_id=$1 AND (actor_id IS NULL OR actor_id=$2) ORDER BY capability`, tenantID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var caps []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

// Grant stores a capability grant. A nil ActorID grants tenant-wide.
func (s *Service) Grant(ctx context.Context, g Grant) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO capability_grants (tenant_id, actor_id, capability)
VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, g.TenantID, g.ActorID, strings.ToLower(strings.TrimSpace(g.Capability)))
	return err
}

// StaticAuthorizer grants a fixed capability set to every actor. Used in test mode.
type StaticAuthorizer []string

// Capabilities implements Authorizer.
func (a StaticAuthorizer) Capabilities(context.Context, int64, int64) ([]string, error) {
	return []string(a), nil
}

package rbac

import "time"

// Grant gives a capability to one actor, or to every actor of a tenant when ActorID is nil.
type Grant struct {
	TenantID   int64
	ActorID    *int64
	Capability string
	CreatedAt  time.Time
}

package shared

import "context"

// Principal identifies who is acting on behalf of which tenant. Resolved upstream by the gateway.
type Principal struct {
	TenantID int64
	ActorID  int64
}

// Valid reports whether both identifiers are present.
func (p Principal) Valid() bool {
	return p.TenantID > 0 && p.ActorID > 0
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok && p.Valid()
}

package tenant

import "context"

// Identity is the authenticated caller. Every retrieval is scoped to ID.
type Identity struct {
	ID              string
	DefaultCurrency string
	KeyName         string
}

// Valid reports whether the identity carries a tenant id.
func (i Identity) Valid() bool { return i.ID != "" }

type ctxKey struct{}

// ContextWithIdentity stores the caller identity in ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity stored by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.Valid()
}

package factoring

import "context"

// Authenticator gates mutating operations on the identity they act for.
type Authenticator interface {
	RequireAuth(ctx context.Context, id Identity) error
}

// AuthFunc adapts a function to Authenticator.
type AuthFunc func(ctx context.Context, id Identity) error

// RequireAuth implements Authenticator.
func (f AuthFunc) RequireAuth(ctx context.Context, id Identity) error {
	return f(ctx, id)
}

type callerKey struct{}

// WithCaller attaches the authenticated caller identity to ctx. The host is
// responsible for having verified it.
func WithCaller(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFromContext returns the caller attached by WithCaller.
func CallerFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(callerKey{}).(Identity)
	return id, ok && id != ""
}

// CallerAuth authorizes an operation when the context caller is the
// identity the operation acts for. The Unassigned sentinel never passes.
type CallerAuth struct{}

// RequireAuth implements Authenticator.
func (CallerAuth) RequireAuth(ctx context.Context, id Identity) error {
	caller, ok := CallerFromContext(ctx)
	if !ok || id == "" || id == Unassigned || caller != id {
		return ErrUnauthorized
	}
	return nil
}

package shared

import (
	"context"

	"github.com/huiui/hello-antd-role/internal/token"
)

type identityContextKey struct{}

// ContextWithIdentity stores the verified caller identity in context.
func ContextWithIdentity(ctx context.Context, id token.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity, if the request was authenticated.
func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(token.Identity)
	return id, ok
}

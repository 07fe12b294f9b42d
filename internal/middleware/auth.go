package middleware

import (
	"context"

	"pix-server/internal/protocol"
	"pix-server/internal/session"
	"pix-server/internal/utils"
)

// Handler serves one validated request.
type Handler func(ctx context.Context, req protocol.Request) (protocol.Response, error)

type identityKey struct{}

// RequireSession resolves the request token before calling next. Every
// resolution failure is reported as session.ErrNotFound, whatever the cause.
func RequireSession(sessions session.Store, next Handler) Handler {
	return func(ctx context.Context, req protocol.Request) (protocol.Response, error) {
		identity, err := sessions.Resolve(req.Token)
		if err != nil {
			utils.LogWarning("Middleware", "Rejected session for %s", req.Operation)
			return protocol.Response{}, session.ErrNotFound
		}

		utils.LogDebug("Middleware", "Authenticated %s", identity)
		return next(WithIdentity(ctx, identity), req)
	}
}

func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// Identity returns the identity bound by RequireSession.
func Identity(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey{}).(string)
	return identity, ok && identity != ""
}

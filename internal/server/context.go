package server

import (
	"context"

	"github.com/riley-cms/riley-cms/internal/auth"
)

type ctxKey int

const authStatusKey ctxKey = iota

func withAuthStatus(ctx context.Context, status auth.Status) context.Context {
	return context.WithValue(ctx, authStatusKey, status)
}

// authStatusFrom returns the request's classified auth status, Public
// if the middleware never ran (should not happen on a wired router).
func authStatusFrom(ctx context.Context) auth.Status {
	if v, ok := ctx.Value(authStatusKey).(auth.Status); ok {
		return v
	}
	return auth.Public
}

func isAdmin(ctx context.Context) bool {
	return authStatusFrom(ctx) == auth.Admin
}

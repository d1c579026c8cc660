// Package logctx carries a request-scoped logger on the context so every
// layer logs with the same request id and trace fields without threading a
// logger argument through call chains.
package logctx

import (
	"context"

	"github.com/mallkit/storefront/internal/observability"
)

type ctxKey struct{}

// With returns a context carrying the logger. A nil logger leaves the
// context unchanged.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromOr returns the context's logger, or the fallback when no middleware
// has stored one (background workers, tests). Never returns nil.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(observability.Logger); ok && logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return observability.NopLogger()
}

package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/condoreg/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for the import history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already resolved by TrustedRealIP
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

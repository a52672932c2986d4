package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/contactimport/internal/logging"
)

// withRequestMetadata stores a logger carrying the client address and user
// agent, so import sessions started by this request log who started them.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	logger := logging.WithFields(ctx,
		"ip", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	)
	return logging.ContextWithLogger(ctx, logger)
}

package testutil

import (
	"context"
	"net/http"

	"custodian/internal/domain"
	"custodian/pkg/requestcontext"
)

// WithIdentity injects a verified identity into the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithIdentity(req *http.Request, identity domain.Identity) *http.Request {
	ctx := requestcontext.WithIdentity(req.Context(), identity)
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}

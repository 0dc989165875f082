package testutil

import (
	"context"
	"net/http"
	"time"

	"adminguard/pkg/requestcontext"
)

// FixedClock returns a clock frozen at *now; tests advance it by assigning through the pointer.
func FixedClock(now *time.Time) func() time.Time {
	return func() time.Time { return *now }
}

// Context is a background context at now with a fixed client address.
func Context(now time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	return requestcontext.WithClientMetadata(ctx, "203.0.113.7", "testutil")
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

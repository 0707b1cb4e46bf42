package auditctx

import "context"

// Request captures client details of the HTTP request that triggered a service call.
type Request struct {
	ID        string
	IPAddress string
	UserAgent string
}

type requestContextKey struct{}

// WithRequest injects request metadata into ctx so audit entries can be attributed.
func WithRequest(ctx context.Context, req Request) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestContextKey{}, req)
}

// FromContext extracts previously stored request metadata.
func FromContext(ctx context.Context) (Request, bool) {
	if ctx == nil {
		return Request{}, false
	}
	req, ok := ctx.Value(requestContextKey{}).(Request)
	return req, ok
}

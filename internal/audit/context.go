package audit

import (
	"context"
	"net/http"
)

type requestKey struct{}

// ContextWithRequest stores r so events emitted further down the call chain
// can be enriched with client metadata.
func ContextWithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// Enrich applies WithRequest when ctx carries a request, otherwise it returns event unchanged.
func Enrich(ctx context.Context, event Event) Event {
	if r, ok := ctx.Value(requestKey{}).(*http.Request); ok && r != nil {
		return WithRequest(event, r)
	}
	return event
}

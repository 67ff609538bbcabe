package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// httpContext wraps context.Context with the native request/response pair
// and a logger already tagged with request-identifying attributes. A
// Handler method receives this instead of the bare *http.Request so that
// every log line it emits carries the same method/path/id tuple without
// each call site having to rebuild it.
type httpContext struct {
	context.Context

	res http.ResponseWriter
	req *http.Request

	log *slog.Logger
}

// newContext builds the httpContext for one request. Middleware constructs
// it once, at routing time, and stores it on the request; verb handlers
// retrieve it with getContext instead of building their own.
func (h *UnroutedHandler) newContext(w http.ResponseWriter, r *http.Request) *httpContext {
	log := h.config.Logger.With("method", r.Method, "path", r.URL.Path, "requestId", getRequestID(r))

	return &httpContext{
		Context: r.Context(),
		res:     w,
		req:     r,
		log:     log,
	}
}

// getContext retrieves the httpContext Middleware attached to r, or builds
// one on the fly if the handler method is used outside of Middleware (e.g.
// directly in a test).
func (h *UnroutedHandler) getContext(w http.ResponseWriter, r *http.Request) *httpContext {
	if c, ok := r.Context().(*httpContext); ok {
		return c
	}
	return h.newContext(w, r)
}

// getRequestID returns the caller-supplied X-Request-ID header, truncated to
// the length of a UUID, or "" if absent.
func getRequestID(r *http.Request) string {
	id := r.Header.Get("X-Request-ID")
	if len(id) > 36 {
		id = id[:36]
	}
	return id
}

// Package middleware provides the HTTP middleware chain used by the API
// server.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey int

const reqIDKey ctxKey = iota

// Use wraps handler with the given middlewares, applying them left to
// right so the first middleware is the outermost.
func Use(handler http.HandlerFunc, middlewares ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = handler

	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}

	return h
}

// NewReqID creates a middleware that gives every request an ID -- the
// caller's X-Request-Id header when present, otherwise a new UUID --
// stores it on the request context, and echoes it in the X-Request-Id
// response header so clients can correlate logs.
func NewReqID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set("X-Request-Id", id)

			ctx := context.WithValue(r.Context(), reqIDKey, id)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ReqID returns the request ID stored by NewReqID, or an empty string.
func ReqID(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey).(string)
	return id
}

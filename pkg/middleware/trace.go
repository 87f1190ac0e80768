package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/tracing"
)

// Trace opens a root span per request and logs the span tree when the
// request ends. It must run after QueryID so the trace id is the query id.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.Start(r.Context(), r.Method+" "+r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
		span.SetAttr("route", routePattern(r))
		span.End()
		span.Log(ctx, logger.FromContext(ctx))
	})
}

package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// InjectLogger stores lg in every request context, tagged with the request
// ID when RequestID runs before it.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLg := lg
			if id := RequestIDFromContext(r.Context()); id != "" {
				reqLg = lg.With(zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), reqLg)))
		})
	}
}

// LogRequests logs one line per request once it has been served.
func LogRequests() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			status := sw.Status()
			lvl := zap.DebugLevel
			switch {
			case status >= 500:
				lvl = zap.ErrorLevel
			case status >= 400:
				lvl = zap.InfoLevel
			}
			if ce := zctx.From(r.Context()).Check(lvl, "Request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("route", Route(r)),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("size", sw.size),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

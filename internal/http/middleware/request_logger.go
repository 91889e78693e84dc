package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/wizardoma/radiance-wellness/internal/session"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// RequestLogger emits one structured log line per HTTP request and echoes
// the request id back to the caller.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = chimw.GetReqID(r.Context())
			}
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"request_id", reqID,
				"role", session.FromContext(r.Context()).Role,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			reqLogger := logger.FromContext(r.Context())
			if status >= http.StatusInternalServerError {
				reqLogger.Error("request completed", args...)
				return
			}
			reqLogger.Info("request completed", args...)
		})
	}
}

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxLoggedBody = 1024

// LogMiddleware writes one structured line per request.
func LogMiddleware(logger *zap.SugaredLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Errorw("failed to read request body", "error", err)
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			loggedBody := "<skipped>"
			if len(bodyBytes) > 0 && isProbablyText(bodyBytes) {
				loggedBody = string(bodyBytes)
				if len(loggedBody) > maxLoggedBody {
					loggedBody = loggedBody[:maxLoggedBody] + "..."
				}
			}

			lrw := newStatusRecorder(w)
			next.ServeHTTP(lrw, r)

			logger.Infow("request",
				"method", r.Method,
				"uri", r.RequestURI,
				"status", lrw.status,
				"size", lrw.size,
				"duration", time.Since(start),
				"body", loggedBody,
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	size    int
	written bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (lrw *statusRecorder) WriteHeader(code int) {
	if lrw.written {
		return
	}
	lrw.status = code
	lrw.written = true
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *statusRecorder) Write(b []byte) (int, error) {
	if !lrw.written {
		lrw.WriteHeader(http.StatusOK)
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

func isProbablyText(b []byte) bool {
	for _, c := range b {
		if c == 0 || c > 127 {
			return false
		}
	}
	return true
}

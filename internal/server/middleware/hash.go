package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/utils"
)

// VerifyHashMiddleware checks the HashSHA256 header of incoming bodies and
// signs responses. It is a no-op when key is empty.
func VerifyHashMiddleware(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, errs.InvalidArgument("bad body").Wire(), http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			got := r.Header.Get(utils.HashHeader)
			if got != "" && !utils.ValidHash(bodyBytes, key, got) {
				http.Error(w, errs.InvalidArgument("invalid hash").Wire(), http.StatusBadRequest)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			capture.flush(key)
		})
	}
}

// responseCapture buffers the response so the signature header can be set
// before anything reaches the client.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
}

func (r *responseCapture) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

func (r *responseCapture) flush(key string) {
	r.ResponseWriter.Header().Set(utils.HashHeader, utils.CalculateHash(r.body.Bytes(), key))
	r.ResponseWriter.WriteHeader(r.status)
	_, _ = r.ResponseWriter.Write(r.body.Bytes())
}

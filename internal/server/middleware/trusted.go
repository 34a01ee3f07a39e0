package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/and161185/dataexchange/internal/errs"
)

// RealIPHeader carries the agent address checked against the trusted subnet.
const RealIPHeader = "X-Real-IP"

// TrustedCIDR rejects requests whose X-Real-IP is outside cidr. An empty cidr
// allows everything.
func TrustedCIDR(cidr string) (func(http.Handler) http.Handler, error) {
	if cidr == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted subnet %q: %w", cidr, err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := net.ParseIP(r.Header.Get(RealIPHeader))
			if ip == nil || !ipnet.Contains(ip) {
				http.Error(w, errs.New(errs.APIKeyNotAllowed, "untrusted address").Wire(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

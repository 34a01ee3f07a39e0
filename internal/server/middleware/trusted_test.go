package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTrustedCIDR(t *testing.T) {
	tests := []struct {
		name       string
		cidr       string
		realIP     string
		wantStatus int
	}{
		{"empty allows all", "", "", http.StatusOK},
		{"inside", "10.0.0.0/24", "10.0.0.42", http.StatusOK},
		{"outside", "10.0.0.0/24", "192.168.1.10", http.StatusForbidden},
		{"missing header", "10.0.0.0/24", "", http.StatusForbidden},
		{"garbage header", "10.0.0.0/24", "not-an-ip", http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mw, err := TrustedCIDR(tc.cidr)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/any", nil)
			if tc.realIP != "" {
				req.Header.Set(RealIPHeader, tc.realIP)
			}
			rr := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rr, req)

			require.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestTrustedCIDR_InvalidCIDR(t *testing.T) {
	_, err := TrustedCIDR("wtf")
	require.Error(t, err)
}

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/dataexchange/internal/config"
	srv "github.com/and161185/dataexchange/internal/server"
	"github.com/and161185/dataexchange/internal/rest"
	"github.com/and161185/dataexchange/internal/utils"
	"github.com/and161185/dataexchange/model"
	"github.com/and161185/dataexchange/storage/inmemory"
	"github.com/and161185/dataexchange/storage/mocks"
)

func newConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Addr:          "127.0.0.1:0",
		Logger:        zap.NewNop().Sugar(),
		StoreInterval: 300,
		ServerSideXML: true,
	}
}

func newTestServer(t *testing.T, cfg *config.ServerConfig) (*srv.Server, *httptest.Server) {
	t.Helper()
	s := srv.NewServer(inmemory.NewMemStorage(nil), cfg)
	h, err := s.Router()
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func openSession(t *testing.T, ts *httptest.Server, apiKey string) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/Session", rest.SessionProperties{
		Context: &rest.ContextProperties{Hardware: "x86", OS: "linux", Script: "login"},
		APIKey:  apiKey,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p rest.SessionIDProperties
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	resp.Body.Close()
	require.NotEmpty(t, p.SessionID)
	return p.SessionID
}

func TestMetadataHandler(t *testing.T) {
	tests := []struct {
		name    string
		xml     bool
		wantXML bool
	}{
		{"server side xml", true, true},
		{"client side xml", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newConfig()
			cfg.ServerSideXML = tc.xml
			_, ts := newTestServer(t, cfg)

			resp, err := http.Get(ts.URL + "/$metadata")
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var md rest.Metadata
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&md))
			require.True(t, md.Supports(rest.EntriesResource))
			require.Equal(t, tc.wantXML, md.Supports(rest.XMLEntriesResource))
		})
	}
}

func TestSessionHandler_APIKey(t *testing.T) {
	cfg := newConfig()
	cfg.APIKey = "secret"
	_, ts := newTestServer(t, cfg)

	resp := postJSON(t, ts.URL+"/Session", rest.SessionProperties{APIKey: "wrong"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "NL-API-KEY-NOT-ALLOWED", strings.TrimSpace(readBody(t, resp)))

	openSession(t, ts, "secret")
}

func TestSessionHandler_BadRequests(t *testing.T) {
	_, ts := newTestServer(t, newConfig())

	resp, err := http.Post(ts.URL+"/Session", "text/plain", strings.NewReader("{}"))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/Session", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "NL-API-INVALID-ARGUMENT(invalid JSON)")
}

func TestEntryHandlers_RoundTrip(t *testing.T) {
	_, ts := newTestServer(t, newConfig())
	sid := openSession(t, ts, "")

	resp := postJSON(t, ts.URL+"/Entry", rest.EntryProperties{
		SessionID: sid,
		Path:      "Requests|home page",
		Timestamp: utils.I64Ptr(1000),
		Value:     utils.F64Ptr(12.5),
		Unit:      "ms",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/Entries", rest.EntriesProperties{
		SessionID: sid,
		Entries: []rest.EntryProperties{
			{Path: "Requests|login", Timestamp: utils.I64Ptr(1001), Status: &rest.StatusProperties{Code: "E1", State: "Fail"}},
		},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/XMLEntries", rest.XMLEntriesProperties{
		SessionID: sid,
		XML:       "<cpu><user>3</user></cpu>",
		Path:      "mon",
		Timestamp: utils.I64Ptr(1002),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/Session/" + sid + "/Entries")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got rest.EntriesProperties
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()

	entries, err := rest.EntriesFromProperties(got.Entries)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, []string{"Requests", "home page"}, entries[0].Path())
	require.Equal(t, []string{"mon", "cpu", "user"}, entries[2].Path())
	v, ok := entries[2].Value()
	require.True(t, ok)
	require.Equal(t, 3.0, v)
	st, ok := entries[1].Status()
	require.True(t, ok)
	require.Equal(t, model.StateFail, st.State())

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	html := readBody(t, resp)
	require.Contains(t, html, sid)
	require.Contains(t, html, "Requests/home page")
	require.Contains(t, html, "script=login platform=x86-linux entries=3")
}

func TestEntryHandlers_Errors(t *testing.T) {
	_, ts := newTestServer(t, newConfig())
	sid := openSession(t, ts, "")

	tests := []struct {
		name       string
		url        string
		body       any
		wantStatus int
		wantBody   string
	}{
		{"missing path", "/Entry", rest.EntryProperties{SessionID: sid, Timestamp: utils.I64Ptr(1)}, http.StatusBadRequest, "NL-API-INVALID-ARGUMENT(Missing path entry.)"},
		{"missing timestamp", "/Entry", rest.EntryProperties{SessionID: sid, Path: "a"}, http.StatusBadRequest, "NL-API-INVALID-ARGUMENT(Missing entry timestamp.)"},
		{"missing session", "/Entry", rest.EntryProperties{Path: "a", Timestamp: utils.I64Ptr(1)}, http.StatusNotFound, "NL-API-ILLEGAL-SESSION(missing session)"},
		{"unknown session", "/Entries", rest.EntriesProperties{SessionID: "nope"}, http.StatusNotFound, "NL-API-ILLEGAL-SESSION(unknown session)"},
		{"missing xml", "/XMLEntries", rest.XMLEntriesProperties{SessionID: sid}, http.StatusBadRequest, "NL-API-INVALID-ARGUMENT(Missing Xml entry.)"},
		{"broken xml", "/XMLEntries", rest.XMLEntriesProperties{SessionID: sid, XML: "<a>1"}, http.StatusBadRequest, "NL-API-INVALID-ARGUMENT(Invalid XML content)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+tc.url, tc.body)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
			require.Equal(t, tc.wantBody, strings.TrimSpace(readBody(t, resp)))
		})
	}

	resp, err := http.Get(ts.URL + "/Session/nope/Entries")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestXMLEntries_DisabledRoute(t *testing.T) {
	cfg := newConfig()
	cfg.ServerSideXML = false
	_, ts := newTestServer(t, cfg)

	resp := postJSON(t, ts.URL+"/XMLEntries", rest.XMLEntriesProperties{XML: "<a>1</a>"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestTrustedSubnet(t *testing.T) {
	cfg := newConfig()
	cfg.TrustedSubnet = "10.0.0.0/8"
	_, ts := newTestServer(t, cfg)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/$metadata", nil)
	require.NoError(t, err)
	req.Header.Set("X-Real-IP", "192.168.0.1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	req.Header.Set("X-Real-IP", "10.1.2.3")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_InvalidSubnet(t *testing.T) {
	cfg := newConfig()
	cfg.TrustedSubnet = "garbage"
	_, err := srv.NewServer(inmemory.NewMemStorage(nil), cfg).Router()
	require.Error(t, err)
}

func TestHashSignedRequest(t *testing.T) {
	cfg := newConfig()
	cfg.Key = "k"
	_, ts := newTestServer(t, cfg)

	body := []byte(`{"ApiKey":""}`)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/Session", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(utils.HashHeader, utils.CalculateHash(body, "k"))
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	respBody := readBody(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, utils.CalculateHash([]byte(respBody), "k"), resp.Header.Get(utils.HashHeader))

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/Session", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(utils.HashHeader, "bad")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, newConfig())

	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "dataexchange_http_requests_total")
}

func TestStorageFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStorage(ctrl)
	st.EXPECT().Ping(gomock.Any()).Return(errors.New("db down"))
	st.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	st.EXPECT().ListSessions(gomock.Any()).Return(nil, errors.New("db down"))

	s := srv.NewServer(st, newConfig())
	h, err := s.Router()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/Session", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "NL-API-ERROR(internal error)", strings.TrimSpace(rr.Body.String()))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestSessionHandler_StoresContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := mocks.NewMockStorage(ctrl)
	var created model.Session
	st.EXPECT().CreateSession(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s model.Session) error {
		created = s
		return nil
	})

	h, err := srv.NewServer(st, newConfig()).Router()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/Session", strings.NewReader(`{"Context":{"Hardware":"arm[64]","Os":"linux"}}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "arm_64_", created.Context.Hardware)
	require.Equal(t, "arm_64_-linux", created.Context.Platform())
	require.Contains(t, rr.Body.String(), created.ID)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRun_StartStopAndSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	cfg := newConfig()
	cfg.Addr = freeAddr(t)
	cfg.FileStoragePath = path
	cfg.StoreInterval = 0

	st := inmemory.NewMemStorage(nil)
	s := srv.NewServer(st, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Addr + "/ping")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp := postJSON(t, "http://"+cfg.Addr+"/Session", rest.SessionProperties{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	restored := inmemory.NewMemStorage(nil)
	require.NoError(t, restored.LoadFromFile(context.Background(), path))
	sessions, err := restored.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

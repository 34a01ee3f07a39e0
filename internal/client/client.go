// Package client sends entries to a DataExchange collector server.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/dataexchange/internal/config"
	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/rest"
	"github.com/and161185/dataexchange/internal/utils"
	"github.com/and161185/dataexchange/internal/xmlentries"
	"github.com/and161185/dataexchange/model"
)

// Client is bound to one session opened at construction. A disabled client
// accepts everything and sends nothing.
type Client struct {
	config        *config.ClientConfig
	httpClient    *http.Client
	logger        *zap.SugaredLogger
	realIP        string
	sessionID     string
	serverSideXML bool
}

// NewClient opens a session on the configured server.
func NewClient(ctx context.Context, cfg *config.ClientConfig, sctx model.Context, logger *zap.SugaredLogger) (*Client, error) {
	hc := &http.Client{Timeout: time.Duration(cfg.ClientTimeout) * time.Second}
	return NewClientWithHTTP(ctx, cfg, sctx, logger, hc)
}

// NewClientWithHTTP is NewClient with a ready http.Client.
func NewClientWithHTTP(ctx context.Context, cfg *config.ClientConfig, sctx model.Context, logger *zap.SugaredLogger, hc *http.Client) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	clnt := &Client{config: cfg, httpClient: hc, logger: logger}
	if !cfg.Enabled {
		logger.Info("client disabled, entries will be dropped")
		return clnt, nil
	}
	clnt.realIP = detectOutboundIP()

	md, err := clnt.metadata(ctx)
	if err != nil {
		return nil, err
	}
	clnt.serverSideXML = md.Supports(rest.XMLEntriesResource)

	var sid rest.SessionIDProperties
	if err := clnt.post(ctx, rest.SessionResource, rest.SessionToProperties(sctx, cfg.APIKey), &sid); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if sid.SessionID == "" {
		return nil, errs.New(errs.APIIllegalSession, "empty session id")
	}
	clnt.sessionID = sid.SessionID

	logger.Infow("session opened", "session", sid.SessionID, "server", cfg.ServerAddr, "serverSideXML", clnt.serverSideXML)
	return clnt, nil
}

func detectOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if la, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return la.IP.String()
	}
	return ""
}

// SessionID is empty for a disabled client.
func (clnt *Client) SessionID() string { return clnt.sessionID }

func (clnt *Client) enabled() bool { return clnt.config.Enabled }

// AddEntry sends one entry.
func (clnt *Client) AddEntry(ctx context.Context, e model.Entry) error {
	if !clnt.enabled() {
		return nil
	}
	p, err := rest.EntryToProperties(e)
	if err != nil {
		return err
	}
	p.SessionID = clnt.sessionID
	return clnt.post(ctx, rest.EntryResource, p, nil)
}

// AddEntries sends entries in one request. An empty batch is not sent.
func (clnt *Client) AddEntries(ctx context.Context, entries []model.Entry) error {
	if !clnt.enabled() || len(entries) == 0 {
		return nil
	}
	p, err := rest.EntriesToProperties(clnt.sessionID, entries)
	if err != nil {
		return err
	}
	return clnt.post(ctx, rest.EntriesResource, p, nil)
}

// AddXMLEntries sends a raw document. When the server does not flatten XML
// itself the document is flattened here and posted as entries.
func (clnt *Client) AddXMLEntries(ctx context.Context, xml string, parentPath []string, timestamp int64, charset string) error {
	if !clnt.enabled() {
		return nil
	}
	if parentPath == nil {
		parentPath = []string{}
	}
	if !clnt.serverSideXML {
		entries, err := xmlentries.FromXML(xml, parentPath, timestamp, charset)
		if err != nil {
			return err
		}
		return clnt.AddEntries(ctx, entries)
	}
	if xml == "" {
		return errs.InvalidArgument("Missing Xml entry.")
	}
	if err := xmlentries.ValidateCharset(charset); err != nil {
		return err
	}
	p := rest.XMLEntriesToProperties(xml, parentPath, timestamp, charset)
	p.SessionID = clnt.sessionID
	return clnt.post(ctx, rest.XMLEntriesResource, p, nil)
}

func (clnt *Client) metadata(ctx context.Context) (rest.Metadata, error) {
	var md rest.Metadata
	err := utils.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, clnt.url(rest.MetadataResource), nil)
		if err != nil {
			return err
		}
		clnt.setHeaders(req, nil)
		resp, err := clnt.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			// older servers only know plain entries
			md = rest.Metadata{Resources: []string{rest.SessionResource, rest.EntryResource, rest.EntriesResource}}
			return nil
		}
		return readResponse(resp, &md)
	})
	if err != nil {
		return rest.Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	return md, nil
}

func (clnt *Client) url(resource string) string {
	return clnt.config.ServerAddr + "/" + resource
}

func (clnt *Client) setHeaders(req *http.Request, body []byte) {
	if clnt.realIP != "" {
		req.Header.Set("X-Real-IP", clnt.realIP)
	}
	if body == nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if clnt.config.Key != "" {
		req.Header.Set(utils.HashHeader, utils.CalculateHash(body, clnt.config.Key))
	}
}

func gzipJSON(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return body.Bytes(), nil
}

// post sends payload gzipped and signed, decoding the answer into out when
// out is not nil. The request is rebuilt for every attempt.
func (clnt *Client) post(ctx context.Context, resource string, payload any, out any) error {
	body, err := gzipJSON(payload)
	if err != nil {
		return err
	}
	return utils.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, clnt.url(resource), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		clnt.setHeaders(req, body)

		resp, err := clnt.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return readResponse(resp, out)
	})
}

// readResponse turns a non-2xx answer into a typed error.
func readResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := errs.Parse(string(msg))
		if apiErr.Type == errs.APIError && apiErr.Details == "" {
			apiErr.Details = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

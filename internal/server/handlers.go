package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/and161185/dataexchange/internal/buildinfo"
	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/rest"
	"github.com/and161185/dataexchange/model"
)

const maxBodyBytes = 10 << 20

var errUnsupportedContentType = errors.New("unsupported content type")

// writeError maps err onto a status code and writes it as TYPE(details).
func (srv *Server) writeError(w http.ResponseWriter, err error) {
	var apiErr *errs.Error
	switch {
	case errors.Is(err, errUnsupportedContentType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case errors.Is(err, errs.ErrNotFound):
		apiErr = errs.New(errs.APIIllegalSession, "unknown session")
	case errors.As(err, &apiErr):
	default:
		srv.logger().Errorw("request failed", "error", err)
		apiErr = errs.New(errs.APIError, "internal error")
	}

	status := http.StatusInternalServerError
	switch apiErr.Type {
	case errs.APIInvalidArgument:
		status = http.StatusBadRequest
	case errs.APIKeyNotAllowed:
		status = http.StatusForbidden
	case errs.APIIllegalSession:
		status = http.StatusNotFound
	}
	http.Error(w, apiErr.Wire(), status)
}

func (srv *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.logger().Errorw("failed to write response JSON", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return errUnsupportedContentType
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errs.Wrap(errs.APIInvalidArgument, "invalid JSON", err)
	}
	return nil
}

// MetadataHandler advertises the resources this server accepts.
func (srv *Server) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	resources := []string{rest.SessionResource, rest.EntryResource, rest.EntriesResource}
	if srv.Config.ServerSideXML {
		resources = append(resources, rest.XMLEntriesResource)
	}
	srv.writeJSON(w, http.StatusOK, rest.Metadata{Version: buildinfo.Version(), Resources: resources})
}

// SessionHandler opens a session after checking the API key.
func (srv *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	var p rest.SessionProperties
	if err := decodeJSON(w, r, &p); err != nil {
		srv.writeError(w, err)
		return
	}

	if srv.Config.APIKey != "" && p.APIKey != srv.Config.APIKey {
		srv.writeError(w, errs.ErrKeyNotAllowed)
		return
	}

	var sctx model.Context
	if p.Context != nil {
		sctx = rest.ContextFromProperties(*p.Context)
	}
	session := model.Session{
		ID:        uuid.NewString(),
		Context:   sctx,
		CreatedAt: time.Now().UTC(),
	}
	if err := srv.Storage.CreateSession(r.Context(), session); err != nil {
		srv.writeError(w, err)
		return
	}
	srv.afterWrite(r.Context())

	srv.logger().Infow("session opened", "session", session.ID, "script", sctx.Script, "platform", sctx.Platform())
	srv.writeJSON(w, http.StatusCreated, rest.SessionIDProperties{SessionID: session.ID})
}

func (srv *Server) save(w http.ResponseWriter, r *http.Request, sessionID string, entries []model.Entry) {
	if sessionID == "" {
		srv.writeError(w, errs.New(errs.APIIllegalSession, "missing session"))
		return
	}
	if err := srv.Storage.SaveEntries(r.Context(), sessionID, entries); err != nil {
		srv.writeError(w, err)
		return
	}
	srv.afterWrite(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// EntryHandler stores a single entry.
func (srv *Server) EntryHandler(w http.ResponseWriter, r *http.Request) {
	var p rest.EntryProperties
	if err := decodeJSON(w, r, &p); err != nil {
		srv.writeError(w, err)
		return
	}
	e, err := rest.EntryFromProperties(p)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.save(w, r, p.SessionID, []model.Entry{e})
}

// EntriesHandler stores a batch of entries.
func (srv *Server) EntriesHandler(w http.ResponseWriter, r *http.Request) {
	var p rest.EntriesProperties
	if err := decodeJSON(w, r, &p); err != nil {
		srv.writeError(w, err)
		return
	}
	entries, err := rest.EntriesFromProperties(p.Entries)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.save(w, r, p.SessionID, entries)
}

// XMLEntriesHandler flattens a raw document and stores the result.
func (srv *Server) XMLEntriesHandler(w http.ResponseWriter, r *http.Request) {
	var p rest.XMLEntriesProperties
	if err := decodeJSON(w, r, &p); err != nil {
		srv.writeError(w, err)
		return
	}
	entries, err := rest.XMLEntriesFromProperties(p)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.save(w, r, p.SessionID, entries)
}

// SessionEntriesHandler returns every entry of a session.
func (srv *Server) SessionEntriesHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := srv.Storage.GetEntries(r.Context(), id)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	p, err := rest.EntriesToProperties(id, entries)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, p)
}

// PingHandler checks the storage.
func (srv *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.Storage.Ping(r.Context()); err != nil {
		srv.logger().Errorw("storage ping failed", "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListSessionsHandler renders sessions and their entries as HTML.
func (srv *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := srv.Storage.ListSessions(r.Context())
	if err != nil {
		srv.writeError(w, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("<html><body>\n")
	for _, s := range sessions {
		entries, err := srv.Storage.GetEntries(r.Context(), s.ID)
		if err != nil {
			srv.writeError(w, err)
			return
		}
		fmt.Fprintf(&sb, "<h2>%s</h2><p>script=%s platform=%s entries=%d</p>\n<ul>\n",
			html.EscapeString(s.ID), html.EscapeString(s.Context.Script), html.EscapeString(s.Context.Platform()), len(entries))
		for _, e := range entries {
			fmt.Fprintf(&sb, "<li>%s @%d: %s</li>\n",
				html.EscapeString(rest.DisplayPath(e)), e.Timestamp(), html.EscapeString(describe(e)))
		}
		sb.WriteString("</ul>\n")
	}
	sb.WriteString("</body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(sb.String())); err != nil {
		srv.logger().Errorw("failed to write session list", "error", err)
	}
}

func describe(e model.Entry) string {
	var parts []string
	if v, ok := e.Value(); ok {
		parts = append(parts, fmt.Sprintf("%v%s", v, e.Unit()))
	}
	if st, ok := e.Status(); ok {
		parts = append(parts, st.String())
	}
	return strings.Join(parts, " ")
}

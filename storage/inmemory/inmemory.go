// Package inmemory keeps sessions in process memory with optional JSON
// snapshots on disk.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/rest"
	"github.com/and161185/dataexchange/model"
)

type sessionData struct {
	session model.Session
	entries []model.Entry
}

type MemStorage struct {
	sessions map[string]*sessionData
	mu       sync.RWMutex
	logger   *zap.SugaredLogger
}

func NewMemStorage(logger *zap.SugaredLogger) *MemStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MemStorage{
		sessions: make(map[string]*sessionData),
		logger:   logger,
	}
}

func (store *MemStorage) CreateSession(ctx context.Context, s model.Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	store.sessions[s.ID] = &sessionData{session: s}
	return nil
}

func (store *MemStorage) GetSession(ctx context.Context, id string) (model.Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	sd, ok := store.sessions[id]
	if !ok {
		return model.Session{}, errs.ErrNotFound
	}
	return sd.session, nil
}

func (store *MemStorage) SaveEntries(ctx context.Context, sessionID string, entries []model.Entry) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	sd, ok := store.sessions[sessionID]
	if !ok {
		return errs.ErrNotFound
	}
	sd.entries = append(sd.entries, entries...)
	return nil
}

func (store *MemStorage) GetEntries(ctx context.Context, sessionID string) ([]model.Entry, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	sd, ok := store.sessions[sessionID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return slices.Clone(sd.entries), nil
}

// ListSessions returns sessions oldest first.
func (store *MemStorage) ListSessions(ctx context.Context) ([]model.Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	result := make([]model.Session, 0, len(store.sessions))
	for _, sd := range store.sessions {
		result = append(result, sd.session)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (store *MemStorage) Ping(ctx context.Context) error {
	return nil
}

type snapshotSession struct {
	ID        string                 `json:"id"`
	Context   rest.ContextProperties `json:"context"`
	CreatedAt time.Time              `json:"created_at"`
	Entries   []rest.EntryProperties `json:"entries"`
}

func (store *MemStorage) SaveToFile(ctx context.Context, filePath string) error {
	store.mu.RLock()
	snapshot := make([]snapshotSession, 0, len(store.sessions))
	for _, sd := range store.sessions {
		ps, err := rest.EntriesToProperties(sd.session.ID, sd.entries)
		if err != nil {
			store.mu.RUnlock()
			return fmt.Errorf("failed to encode session %s: %w", sd.session.ID, err)
		}
		snapshot = append(snapshot, snapshotSession{
			ID:        sd.session.ID,
			Context:   rest.ContextToProperties(sd.session.Context),
			CreatedAt: sd.session.CreatedAt,
			Entries:   ps.Entries,
		})
	}
	store.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	store.logger.Infof("saved %d sessions to %s", len(snapshot), filePath)
	return nil
}

func (store *MemStorage) LoadFromFile(ctx context.Context, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var snapshot []snapshotSession
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	loaded := make(map[string]*sessionData, len(snapshot))
	for _, s := range snapshot {
		entries, err := rest.EntriesFromProperties(s.Entries)
		if err != nil {
			return fmt.Errorf("failed to restore session %s: %w", s.ID, err)
		}
		loaded[s.ID] = &sessionData{
			session: model.Session{
				ID:        s.ID,
				Context:   rest.ContextFromProperties(s.Context),
				CreatedAt: s.CreatedAt,
			},
			entries: entries,
		}
	}

	store.mu.Lock()
	for id, sd := range loaded {
		store.sessions[id] = sd
	}
	store.mu.Unlock()

	store.logger.Infof("loaded %d sessions from %s", len(loaded), filePath)
	return nil
}

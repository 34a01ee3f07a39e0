// Package storage defines persistence for collector sessions and entries.
package storage

import (
	"context"

	"github.com/and161185/dataexchange/model"
)

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks

// Storage keeps sessions and the entries posted into them. Lookups of an
// unknown session fail with errs.ErrNotFound.
type Storage interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	SaveEntries(ctx context.Context, sessionID string, entries []model.Entry) error
	GetEntries(ctx context.Context, sessionID string) ([]model.Entry, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	Ping(ctx context.Context) error
}

// Package postgres stores sessions and entries in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/rest"
	"github.com/and161185/dataexchange/internal/utils"
	"github.com/and161185/dataexchange/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	hardware    TEXT NOT NULL DEFAULT '',
	os          TEXT NOT NULL DEFAULT '',
	software    TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	script      TEXT NOT NULL DEFAULT '',
	instance_id TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id             BIGSERIAL PRIMARY KEY,
	session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	path           TEXT NOT NULL,
	ts             BIGINT NOT NULL,
	value          DOUBLE PRECISION,
	url            TEXT NOT NULL DEFAULT '',
	unit           TEXT NOT NULL DEFAULT '',
	has_status     BOOLEAN NOT NULL DEFAULT FALSE,
	status_code    TEXT NOT NULL DEFAULT '',
	status_message TEXT NOT NULL DEFAULT '',
	status_state   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS entries_session_idx ON entries (session_id, id);
`

type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage connects to dsn and creates the schema if needed.
func NewPostgresStorage(ctx context.Context, databaseDsn string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, databaseDsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	store := &PostgresStorage{db: db}

	err = utils.WithRetry(ctx, func() error {
		_, err := db.Exec(ctx, schema)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return store, nil
}

func (store *PostgresStorage) Close() {
	store.db.Close()
}

func (store *PostgresStorage) CreateSession(ctx context.Context, s model.Session) error {
	const query = `INSERT INTO sessions (id, hardware, os, software, location, script, instance_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	return utils.WithRetry(ctx, func() error {
		_, err := store.db.Exec(ctx, query, s.ID,
			s.Context.Hardware, s.Context.OS, s.Context.Software,
			s.Context.Location, s.Context.Script, s.Context.InstanceID,
			s.CreatedAt)
		return err
	})
}

func (store *PostgresStorage) GetSession(ctx context.Context, id string) (model.Session, error) {
	const query = `SELECT id, hardware, os, software, location, script, instance_id, created_at
		FROM sessions WHERE id = $1`
	var s model.Session
	err := utils.WithRetry(ctx, func() error {
		row := store.db.QueryRow(ctx, query, id)
		return scanSession(row, &s)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, errs.ErrNotFound
		}
		return model.Session{}, err
	}
	return s, nil
}

// SaveEntries inserts the batch in one transaction.
func (store *PostgresStorage) SaveEntries(ctx context.Context, sessionID string, entries []model.Entry) error {
	const query = `INSERT INTO entries
		(session_id, path, ts, value, url, unit, has_status, status_code, status_message, status_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if len(entries) == 0 {
		_, err := store.GetSession(ctx, sessionID)
		return err
	}

	type row struct {
		path  string
		value *float64
		entry model.Entry
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		path, err := rest.PathToString(e.Path(), rest.PathSeparator)
		if err != nil {
			return err
		}
		r := row{path: path, entry: e}
		if v, ok := e.Value(); ok {
			r.value = &v
		}
		rows = append(rows, r)
	}

	err := utils.WithRetry(ctx, func() error {
		tx, err := store.db.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, r := range rows {
			st, hasStatus := r.entry.Status()
			batch.Queue(query, sessionID, r.path, r.entry.Timestamp(), r.value, r.entry.URL(), r.entry.Unit(),
				hasStatus, st.Code(), st.Message(), st.State().String())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return errs.ErrNotFound
		}
		return fmt.Errorf("save entries: %w", err)
	}
	return nil
}

func (store *PostgresStorage) GetEntries(ctx context.Context, sessionID string) ([]model.Entry, error) {
	if _, err := store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	const query = `SELECT path, ts, value, url, unit, has_status, status_code, status_message, status_state
		FROM entries WHERE session_id = $1 ORDER BY id`

	var result []model.Entry
	err := utils.WithRetry(ctx, func() error {
		rows, err := store.db.Query(ctx, query, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			result = append(result, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (store *PostgresStorage) ListSessions(ctx context.Context) ([]model.Session, error) {
	const query = `SELECT id, hardware, os, software, location, script, instance_id, created_at
		FROM sessions ORDER BY created_at, id`

	var result []model.Session
	err := utils.WithRetry(ctx, func() error {
		rows, err := store.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var s model.Session
			if err := scanSession(rows, &s); err != nil {
				return err
			}
			result = append(result, s)
		}
		return rows.Err()
	})
	return result, err
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func scanSession(row pgx.Row, s *model.Session) error {
	return row.Scan(&s.ID, &s.Context.Hardware, &s.Context.OS, &s.Context.Software,
		&s.Context.Location, &s.Context.Script, &s.Context.InstanceID, &s.CreatedAt)
}

func scanEntry(row pgx.Row) (model.Entry, error) {
	var (
		path, url, unit    string
		ts                 int64
		value              *float64
		hasStatus          bool
		code, msg, stateTx string
	)
	if err := row.Scan(&path, &ts, &value, &url, &unit, &hasStatus, &code, &msg, &stateTx); err != nil {
		return model.Entry{}, err
	}

	b, err := model.NewEntryBuilder(splitPath(path), ts)
	if err != nil {
		return model.Entry{}, err
	}
	if value != nil {
		b.SetValue(*value)
	}
	b.SetURL(url).SetUnit(unit)
	if hasStatus {
		sb := model.NewStatusBuilder().SetCode(code).SetMessage(msg)
		if err := sb.SetState(stateTx); err != nil {
			return model.Entry{}, err
		}
		b.SetStatus(sb.Build())
	}
	return b.Build(), nil
}

func splitPath(path string) []string {
	p, err := rest.PathFromString(path, rest.PathSeparator)
	if err != nil {
		// stored paths are never empty
		return []string{path}
	}
	return p
}

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dasos/peek/pkg/render"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStorage is the embedded durable storage. Coalescing is enforced by a
// partial unique index on (source, coalesce_key), so concurrent writers with
// the same new key resolve to a single row regardless of interleaving.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database file and applies
// pending migrations. Use ":memory:" for an ephemeral database.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY between concurrent writers;
	// reads are served from the same serialized connection, which is plenty
	// for an embedded single-process store.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStorage{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Insert(ctx context.Context, ev Event) error {
	data, view, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, source, ts, display_name, data, view, coalesce_key)
		VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		ev.ID, ev.Source, ev.TS, ev.DisplayName, data, view,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Upsert(ctx context.Context, ev Event) (Event, bool, error) {
	data, view, err := marshalEvent(ev)
	if err != nil {
		return Event{}, false, err
	}

	// The partial unique index turns a second write for the same key into an
	// update that keeps the original row id. RETURNING exposes which one
	// happened: an update returns the existing id, not the candidate's.
	var storedID string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO events (id, source, ts, display_name, data, view, coalesce_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, coalesce_key) WHERE coalesce_key IS NOT NULL
		DO UPDATE SET ts = excluded.ts, display_name = excluded.display_name,
		              data = excluded.data, view = excluded.view
		RETURNING id`,
		ev.ID, ev.Source, ev.TS, ev.DisplayName, data, view, ev.CoalesceKey,
	).Scan(&storedID)
	if err != nil {
		return Event{}, false, fmt.Errorf("upserting event: %w", err)
	}

	wasUpdate := storedID != ev.ID
	ev.ID = storedID
	return ev, wasUpdate, nil
}

func (s *SQLiteStorage) List(ctx context.Context, sources []string, opts ListOptions) (Result, error) {
	var (
		where []string
		args  []any
	)
	if len(sources) > 0 {
		where = append(where, fmt.Sprintf("source IN (%s)", placeholders(len(sources))))
		for _, src := range sources {
			args = append(args, src)
		}
	}
	if opts.Cursor != "" {
		where = append(where, "ts < ?")
		args = append(args, opts.Cursor)
	}

	query := "SELECT id, source, ts, display_name, data, view, coalesce_key FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// rowid breaks timestamp ties by insertion order, newest insert first,
	// matching the in-memory prepend behaviour.
	query += " ORDER BY ts DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	p := newPage(opts)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return Result{}, err
		}
		if !p.add(ev) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("listing events: %w", err)
	}
	return p.result(), nil
}

func (s *SQLiteStorage) Get(ctx context.Context, source, id string) (Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, ts, display_name, data, view, coalesce_key
		FROM events WHERE source = ? AND id = ?`, source, id)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, source, id string) (Event, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM events WHERE source = ? AND id = ?
		RETURNING id, source, ts, display_name, data, view, coalesce_key`, source, id)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func marshalEvent(ev Event) (data []byte, view []byte, err error) {
	if data, err = json.Marshal(ev.Data); err != nil {
		return nil, nil, fmt.Errorf("encoding event payload: %w", err)
	}
	if view, err = json.Marshal(ev.View); err != nil {
		return nil, nil, fmt.Errorf("encoding event view: %w", err)
	}
	return data, view, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (Event, error) {
	var (
		ev          Event
		data, view  []byte
		coalesceKey sql.NullString
	)
	if err := row.Scan(&ev.ID, &ev.Source, &ev.TS, &ev.DisplayName, &data, &view, &coalesceKey); err != nil {
		return Event{}, err
	}
	if err := json.Unmarshal(data, &ev.Data); err != nil {
		return Event{}, fmt.Errorf("decoding event payload: %w", err)
	}
	ev.View = render.View{Highlights: []string{}}
	if err := json.Unmarshal(view, &ev.View); err != nil {
		return Event{}, fmt.Errorf("decoding event view: %w", err)
	}
	ev.CoalesceKey = coalesceKey.String
	return ev, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

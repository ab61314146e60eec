package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/form"
)

const (
	definitionsTable = "definitions"
	eventsTable      = "definition_events"
)

// SQLStore is a Store backed by a SQL database. Statements are generated
// with the ent SQL builder for the configured dialect.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// NewSQL wraps an open database. Call Migrate before use.
func NewSQL(db *sql.DB, dialectName string) *SQLStore {
	return &SQLStore{db: db, dialect: dialectName, now: time.Now}
}

// OpenSQLite opens dsn with the modernc SQLite driver and creates the
// tables. The pool holds one connection so in-memory databases are shared.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := NewSQL(db, dialect.SQLite)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) b() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// schemaDDL creates the store's tables. The ent builder only covers DML,
// so the DDL is written out for SQLite.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS ` + definitionsTable + ` (
		id         TEXT    NOT NULL PRIMARY KEY,
		title      TEXT    NOT NULL DEFAULT '',
		status     TEXT    NOT NULL DEFAULT '',
		items      INTEGER NOT NULL DEFAULT 0,
		document   TEXT    NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ` + eventsTable + ` (
		seq           INTEGER PRIMARY KEY,
		event_id      TEXT    NOT NULL,
		definition_id TEXT    NOT NULL,
		event_type    TEXT    NOT NULL,
		occurred_at   INTEGER NOT NULL,
		document      TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS definition_events_definition_id ON ` + eventsTable + ` (definition_id, seq)`,
}

// Migrate creates the tables if they do not exist. It is safe to run on
// every start.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, q := range schemaDDL {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, def *form.Definition) (bool, error) {
	if def.ID == "" {
		return false, ErrNoID
	}
	doc, err := json.Marshal(def)
	if err != nil {
		return false, fmt.Errorf("encoding definition %s: %w", def.ID, err)
	}
	now := s.now().UnixNano()
	n := countItems(def)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	q, args := s.b().Update(definitionsTable).
		Set("title", def.Title).
		Set("status", def.Status).
		Set("items", n).
		Set("document", string(doc)).
		Set("updated_at", now).
		Where(entsql.EQ("id", def.ID)).
		Query()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("updating definition %s: %w", def.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	created := affected == 0
	if created {
		q, args = s.b().Insert(definitionsTable).
			Columns("id", "title", "status", "items", "document", "created_at", "updated_at").
			Values(def.ID, def.Title, def.Status, n, string(doc), now, now).
			Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return false, fmt.Errorf("inserting definition %s: %w", def.ID, err)
		}
	}
	return created, tx.Commit()
}

func (s *SQLStore) Get(ctx context.Context, id string) (*form.Definition, error) {
	q, args := s.b().Select("document").
		From(s.b().Table(definitionsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	var doc string
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading definition %s: %w", id, err)
	}
	var def form.Definition
	if err := json.Unmarshal([]byte(doc), &def); err != nil {
		return nil, fmt.Errorf("decoding definition %s: %w", id, err)
	}
	return &def, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Summary, error) {
	q, args := s.b().Select("id", "title", "status", "items", "created_at", "updated_at").
		From(s.b().Table(definitionsTable)).
		OrderBy(entsql.Desc("updated_at"), "id").
		Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing definitions: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var created, updated int64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Status, &sum.Items, &created, &updated); err != nil {
			return nil, err
		}
		sum.CreatedAt = time.Unix(0, created)
		sum.UpdatedAt = time.Unix(0, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q, args := s.b().Delete(definitionsTable).Where(entsql.EQ("id", id)).Query()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("deleting definition %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	q, args = s.b().Delete(eventsTable).Where(entsql.EQ("definition_id", id)).Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("deleting events of %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *SQLStore) AppendEvent(ctx context.Context, evt event.DomainEvent) error {
	doc, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", evt.ID, err)
	}
	q, args := s.b().Insert(eventsTable).
		Columns("event_id", "definition_id", "event_type", "occurred_at", "document").
		Values(evt.ID, evt.DefinitionID, evt.EventType, evt.OccurredAt.UnixNano(), string(doc)).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("recording event %s: %w", evt.EventType, err)
	}
	return nil
}

func (s *SQLStore) Events(ctx context.Context, definitionID string) ([]event.DomainEvent, error) {
	q, args := s.b().Select("document").
		From(s.b().Table(eventsTable)).
		Where(entsql.EQ("definition_id", definitionID)).
		OrderBy("seq").
		Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events of %s: %w", definitionID, err)
	}
	defer rows.Close()

	var out []event.DomainEvent
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var evt event.DomainEvent
		if err := json.Unmarshal([]byte(doc), &evt); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }

// Package sqlitedoc is the embedded document store backend. Documents are
// rows of JSON fields keyed by (collection, id); change notifications fan out
// over the process-local event bus, which makes this backend the authoritative
// clock for server timestamps in local mode.
package sqlitedoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

// Store implements docstore.Store on a local SQLite database.
type Store struct {
	db  *sql.DB
	bus *bus.Bus

	// now resolves server timestamp sentinels; overridable in tests.
	now func() int64
}

// Open creates a new SQLite-backed store with WAL mode and recommended pragmas.
func Open(path string, b *bus.Bus) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{
		db:  db,
		bus: b,
		now: func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Query returns the documents of a collection matching all filters. Filters
// are evaluated client-side over the collection's rows.
func (s *Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fields FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []docstore.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(collection, id, raw)
		if err != nil {
			return nil, err
		}
		if docstore.MatchesAll(doc, filters) {
			docs = append(docs, doc)
		}
	}
	return docs, rows.Err()
}

// Create stores a new document under a fresh id and resolves any server
// timestamp sentinels to the store clock.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()
	now := s.now()
	raw, err := encodeFields(fields, now)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		collection, id, raw, now, now)
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	s.notify(collection)
	return id, nil
}

// Write applies fields to a document. Merge keeps unmentioned fields and
// creates the document if missing; Replace overwrites it wholesale.
func (s *Store) Write(ctx context.Context, ref docstore.Ref, fields map[string]any, mode docstore.WriteMode) error {
	now := s.now()

	merged := fields
	if mode == docstore.Merge {
		var raw string
		err := s.db.QueryRowContext(ctx, `
			SELECT fields FROM documents WHERE collection = ? AND id = ?`,
			ref.Collection, ref.ID).Scan(&raw)
		switch {
		case err == sql.ErrNoRows:
			// Merge into a missing document creates it.
		case err != nil:
			return fmt.Errorf("read %s/%s: %w", ref.Collection, ref.ID, err)
		default:
			existing := map[string]any{}
			if err := json.Unmarshal([]byte(raw), &existing); err != nil {
				return fmt.Errorf("decode %s/%s: %w", ref.Collection, ref.ID, err)
			}
			for k, v := range fields {
				existing[k] = v
			}
			merged = existing
		}
	}

	raw, err := encodeFields(merged, now)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at`,
		ref.Collection, ref.ID, raw, now, now)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", ref.Collection, ref.ID, err)
	}
	s.notify(ref.Collection)
	return nil
}

func (s *Store) notify(collection string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      "doc.changed",
		Timestamp: time.Now(),
		Payload:   collection,
	})
}

// encodeFields resolves server timestamp sentinels against now and marshals
// the fields to JSON.
func encodeFields(fields map[string]any, now int64) (string, error) {
	resolved := make(map[string]any, len(fields))
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			resolved[k] = now
			continue
		}
		resolved[k] = v
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(raw), nil
}

func decodeDoc(collection, id, raw string) (docstore.Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return docstore.Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return docstore.Document{
		Ref:    docstore.Ref{Collection: collection, ID: id},
		Fields: fields,
	}, nil
}

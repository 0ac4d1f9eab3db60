package store

import (
	"context"
	"fmt"

	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// Record is one stored document.
type Record struct {
	ID         string
	Collection string
	Body       ir.Object
}

// DefineCollection records which table a collection's bodies follow.
// Redefining a collection replaces its table.
func (s *Store) DefineCollection(ctx context.Context, name string, table *schema.Table) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, schema_name, schema_version)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schema_name = excluded.schema_name,
			schema_version = excluded.schema_version
	`, name, table.Name(), table.Version())
	if err != nil {
		return fmt.Errorf("define collection %s: %w", name, err)
	}
	return nil
}

// Insert stores body in collection and returns its id. A string "id"
// field in body is used as the id; otherwise one is generated.
// Uses ON CONFLICT(id) DO UPDATE so reloading a record replaces it.
func (s *Store) Insert(ctx context.Context, collection string, body ir.Object) (string, error) {
	id := s.idFor(body)
	text, err := marshalBody(body)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, collection, body)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection = excluded.collection,
			body = excluded.body
	`, id, collection, text)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// InsertMany stores bodies in one transaction and returns their ids in
// input order.
func (s *Store) InsertMany(ctx context.Context, collection string, bodies []ir.Object) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, collection, body)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection = excluded.collection,
			body = excluded.body
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(bodies))
	for i, body := range bodies {
		text, err := marshalBody(body)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		ids[i] = s.idFor(body)
		if _, err := stmt.ExecContext(ctx, ids[i], collection, text); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// DeleteCollection removes a collection and all its records.
func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

func (s *Store) idFor(body ir.Object) string {
	if id, ok := body.Get("id").(ir.String); ok && id != "" {
		return string(id)
	}
	return s.ids.Next()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sieve/internal/backend/sqlite"
)

// ErrNotFound is returned when a record or collection does not exist.
var ErrNotFound = errors.New("not found")

// CollectionInfo describes a defined collection.
type CollectionInfo struct {
	Name          string
	SchemaName    string
	SchemaVersion string
}

// Collection returns the definition of name.
func (s *Store) Collection(ctx context.Context, name string) (CollectionInfo, error) {
	info := CollectionInfo{Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT schema_name, schema_version FROM collections WHERE name = ?
	`, name).Scan(&info.SchemaName, &info.SchemaVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return CollectionInfo{}, fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("read collection %s: %w", name, err)
	}
	return info, nil
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rec := Record{ID: id}
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT collection, body FROM records WHERE id = ?
	`, id).Scan(&rec.Collection, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read record %s: %w", id, err)
	}

	rec.Body, err = unmarshalBody(body)
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	return rec, nil
}

// All returns every record of collection ordered by id.
func (s *Store) All(ctx context.Context, collection string) ([]Record, error) {
	return s.Find(ctx, collection, nil, nil)
}

// Find runs a compiled filter and ordering against collection. Either may
// be nil. Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, collection string, where *sqlite.Where, order *sqlite.OrderBy) ([]Record, error) {
	q := sqlite.Select(collection, where, order)

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		obj, err := unmarshalBody(body)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		records = append(records, Record{ID: id, Collection: collection, Body: obj})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

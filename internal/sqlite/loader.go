package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// loadAllJSONL reads every registered table's JSONL file into SQLite inside a
// single transaction: all tables load or none do. Lines that are not valid
// JSON, do not decode into the table's entity type, or carry no ID are
// skipped. Unknown fields are kept in the stored payload.
// The caller must hold b.mu.
func (b *Backend) loadAllJSONL() error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO records (table_name, id, seq, payload) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, name := range types.TableNames() {
		def, err := types.Lookup(name)
		if err != nil {
			continue
		}
		path := jsonlPath(b.config.DataDir, name)
		if err := ensureJSONL(path); err != nil {
			return err
		}
		records, err := readJSONL(path)
		if err != nil {
			return err
		}
		for _, rec := range records {
			entity := def.New()
			if err := json.Unmarshal(rec, entity); err != nil || entity.EntityID() == "" {
				continue
			}
			if _, err := stmt.Exec(name, entity.EntityID(), b.nextSeq(), string(rec)); err != nil {
				return fmt.Errorf("loading %s into %s: %w", path, name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// writeTableJSONL rewrites a table's JSONL file from SQLite in write order.
// The caller must hold b.mu.
func (b *Backend) writeTableJSONL(name string) error {
	rows, err := b.db.Query(
		"SELECT payload FROM records WHERE table_name = ? ORDER BY seq", name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scanning %s: %w", name, err)
		}
		records = append(records, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := writeJSONL(jsonlPath(b.config.DataDir, name), records); err != nil {
		return fmt.Errorf("persisting %s.jsonl: %w", name, err)
	}
	return nil
}

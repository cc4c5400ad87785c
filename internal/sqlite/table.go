package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/crumbset/pkg/types"
)

// table implements types.Table for one registered entity type. Rows live in
// the shared records table and are decoded with the type's constructor.
type table struct {
	name    string
	def     types.TableDef
	backend *Backend
}

var _ types.Table = (*table)(nil)

// filterKey matches the top-level JSON field names Fetch accepts.
var filterKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Get retrieves an entity by ID.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *table) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCupboardDetached
	}
	var payload string
	err := b.db.QueryRow(
		"SELECT payload FROM records WHERE table_name = ? AND id = ?", t.name, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.name, err)
	}
	return t.decode(payload)
}

// Set creates or updates an entity. When both id and the entity's own ID are
// empty a UUID v7 is generated; the ID used is written back to the entity.
// Returns ErrInvalidData if data is not this table's entity type.
func (t *table) Set(id string, data any) (string, error) {
	entity, ok := data.(types.Entity)
	if !ok || reflect.TypeOf(data) != reflect.TypeOf(t.def.New()) {
		return "", fmt.Errorf("%w: %T in table %s", types.ErrInvalidData, data, t.name)
	}
	if v := reflect.ValueOf(data); v.Kind() == reflect.Pointer && v.IsNil() {
		return "", types.ErrInvalidData
	}

	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", types.ErrCupboardDetached
	}
	if id == "" {
		id = entity.EntityID()
	}
	if id == "" {
		id = newUUID()
	}
	entity.SetEntityID(id)

	payload, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	// An update keeps the original seq so file order stays stable.
	_, err = b.db.Exec(`INSERT INTO records (table_name, id, seq, payload) VALUES (?, ?, ?, ?)
ON CONFLICT (table_name, id) DO UPDATE SET payload = excluded.payload`,
		t.name, id, b.nextSeq(), string(payload))
	if err != nil {
		return "", fmt.Errorf("writing %s %s: %w", t.name, id, err)
	}
	if err := b.persist(t.name); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the entity with the given ID.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *table) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrCupboardDetached
	}
	res, err := b.db.Exec("DELETE FROM records WHERE table_name = ? AND id = ?", t.name, id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return b.persist(t.name)
}

// Fetch returns entities whose top-level JSON fields equal the filter values,
// oldest write first. An empty filter matches all. Keys are the JSON field
// names (for example "state"); an unusable key returns ErrInvalidField.
func (t *table) Fetch(filter map[string]any) ([]any, error) {
	query := "SELECT payload FROM records WHERE table_name = ?"
	args := []any{t.name}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var clauses []string
	for _, k := range keys {
		if !filterKey.MatchString(k) {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidField, k)
		}
		v, err := filterValue(filter[k])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidField, k, err)
		}
		clauses = append(clauses, fmt.Sprintf("json_extract(payload, '$.%s') = ?", k))
		args = append(args, v)
	}
	if len(clauses) > 0 {
		query += " AND " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY seq"

	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCupboardDetached
	}
	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", t.name, err)
		}
		entity, err := t.decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func (t *table) decode(payload string) (any, error) {
	entity := t.def.New()
	if err := json.Unmarshal([]byte(payload), entity); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", t.name, err)
	}
	return entity, nil
}

// filterValue converts a filter value to what json_extract yields for it:
// booleans become 0 or 1, numbers stay numeric, everything else is compared
// as a string.
func filterValue(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToInt64E(x)
	case float32, float64:
		return cast.ToFloat64E(x)
	default:
		return cast.ToStringE(v)
	}
}

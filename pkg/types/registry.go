package types

import (
	"errors"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// Standard table names.
const (
	CrumbsTable = "crumbs"
	TrailsTable = "trails"
	LinksTable  = "links"
)

// Entity is implemented by every type stored in a Table.
type Entity interface {
	// EntityID returns the primary key, empty before the first save.
	EntityID() string
	// SetEntityID stores the key assigned by the backend on create.
	SetEntityID(id string)
}

// TableDef describes how a table's entities are built and keyed.
type TableDef struct {
	// Name is the table name.
	Name string
	// KeyField names the struct field holding the primary key.
	KeyField string
	// New returns an empty entity for decoding.
	New func() Entity
}

// Registry errors.
var (
	ErrInvalidDef  = errors.New("table definition needs a name, key field and constructor")
	ErrTableExists = errors.New("table already registered")
)

var registry = xsync.NewMapOf[string, TableDef]()

func init() {
	for _, def := range []TableDef{
		{Name: CrumbsTable, KeyField: "CrumbID", New: func() Entity { return &Crumb{} }},
		{Name: TrailsTable, KeyField: "TrailID", New: func() Entity { return &Trail{} }},
		{Name: LinksTable, KeyField: "LinkID", New: func() Entity { return &Link{} }},
	} {
		if err := Register(def); err != nil {
			panic(err)
		}
	}
}

// Register adds an entity type under def.Name. It is safe for concurrent use.
func Register(def TableDef) error {
	if def.Name == "" || def.KeyField == "" || def.New == nil {
		return ErrInvalidDef
	}
	if _, loaded := registry.LoadOrStore(def.Name, def); loaded {
		return ErrTableExists
	}
	return nil
}

// Lookup returns the definition registered under name.
// Returns ErrTableNotFound if there is none.
func Lookup(name string) (TableDef, error) {
	def, ok := registry.Load(name)
	if !ok {
		return TableDef{}, ErrTableNotFound
	}
	return def, nil
}

// TableNames lists every registered table in lexical order.
func TableNames() []string {
	names := make([]string, 0, registry.Size())
	registry.Range(func(name string, _ TableDef) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

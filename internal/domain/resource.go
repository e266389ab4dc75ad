package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultIDColumn is the native column assumed to hold the protocol "id"
// attribute when a resource type does not map it explicitly.
const DefaultIDColumn = "id"

// AttributeMap maps SCIM attribute paths (dotted for sub-attributes, e.g.
// "name.givenName") to native column names. Lookups are case-insensitive,
// matching the protocol's attribute-name semantics.
type AttributeMap map[string]string

// ResourceType is the static registration of one SCIM resource type:
// which table backs it, how protocol attributes map to columns, and which
// columns carry required, unique, or JSON-encoded values. A ResourceType
// is registered once at startup and read-only afterwards.
type ResourceType struct {
	// Name is the SCIM resource type name, e.g. "User".
	Name string
	// Endpoint is the SCIM endpoint path, e.g. "/Users".
	Endpoint string
	// Table is the backing relational table.
	Table string
	// Attributes maps protocol attribute paths to column names.
	Attributes AttributeMap
	// Required lists columns that must be set before a record saves.
	Required []string
	// Unique maps columns under a uniqueness constraint to the protocol
	// attribute reported on conflict.
	Unique map[string]string
	// JSONColumns lists columns stored as JSON documents (multi-valued
	// or complex attributes).
	JSONColumns []string

	idColumn string
	columns  []string
	lookup   map[string]string
	byColumn map[string]string
	jsonCols map[string]bool
}

// normalize resolves the id column, builds the case-insensitive lookup
// table, and freezes the ordered column list. Called once at registration.
func (rt *ResourceType) normalize() error {
	if rt.Name == "" {
		return fmt.Errorf("resource type name is required: %w", ErrInvalidInput)
	}
	if rt.Table == "" {
		return fmt.Errorf("resource type %s: table is required: %w", rt.Name, ErrInvalidInput)
	}

	rt.lookup = make(map[string]string, len(rt.Attributes))
	rt.byColumn = make(map[string]string, len(rt.Attributes))
	for path, column := range rt.Attributes {
		if column == "" {
			return fmt.Errorf("resource type %s: attribute %q maps to an empty column: %w", rt.Name, path, ErrInvalidInput)
		}
		key := strings.ToLower(path)
		if existing, ok := rt.lookup[key]; ok && existing != column {
			return fmt.Errorf("resource type %s: attribute %q mapped twice: %w", rt.Name, path, ErrInvalidInput)
		}
		rt.lookup[key] = column
		rt.byColumn[column] = path
	}

	// The id mapping is resolved exactly once per resource type; absent
	// mappings fall back to the canonical column.
	if col, ok := rt.lookup["id"]; ok {
		rt.idColumn = col
	} else {
		rt.idColumn = DefaultIDColumn
		rt.lookup["id"] = DefaultIDColumn
		rt.byColumn[DefaultIDColumn] = "id"
	}

	seen := make(map[string]bool)
	for _, column := range rt.lookup {
		if column == rt.idColumn || seen[column] {
			continue
		}
		seen[column] = true
		rt.columns = append(rt.columns, column)
	}
	sort.Strings(rt.columns)

	rt.jsonCols = make(map[string]bool, len(rt.JSONColumns))
	for _, column := range rt.JSONColumns {
		rt.jsonCols[column] = true
	}

	return nil
}

// IDColumn returns the native column holding the protocol "id" attribute.
func (rt *ResourceType) IDColumn() string {
	return rt.idColumn
}

// Columns returns the data columns of the resource type in a fixed sorted
// order, excluding the id column.
func (rt *ResourceType) Columns() []string {
	return rt.columns
}

// Column resolves a protocol attribute path to its native column.
func (rt *ResourceType) Column(path string) (string, bool) {
	column, ok := rt.lookup[strings.ToLower(path)]
	return column, ok
}

// AttributeFor returns the protocol attribute path mapped to a column.
func (rt *ResourceType) AttributeFor(column string) string {
	return rt.byColumn[column]
}

// IsJSON reports whether a column stores a JSON document.
func (rt *ResourceType) IsJSON(column string) bool {
	return rt.jsonCols[column]
}

// UniqueAttribute returns the protocol attribute reported when the given
// column violates a uniqueness constraint, or the column name itself when
// no mapping was declared.
func (rt *ResourceType) UniqueAttribute(column string) string {
	if attr, ok := rt.Unique[column]; ok {
		return attr
	}
	return column
}

// Registry holds all registered resource types, keyed by name. It is
// populated during startup and safe for concurrent reads afterwards.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*ResourceType
}

// NewRegistry creates an empty resource type registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*ResourceType),
	}
}

// Register normalizes and stores a resource type. Registering the same
// name twice is a configuration error.
func (reg *Registry) Register(rt *ResourceType) error {
	if err := rt.normalize(); err != nil {
		return err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.types[rt.Name]; ok {
		return fmt.Errorf("resource type %s already registered: %w", rt.Name, ErrInvalidInput)
	}
	reg.types[rt.Name] = rt

	return nil
}

// Lookup returns the resource type registered under the given name.
func (reg *Registry) Lookup(name string) (*ResourceType, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rt, ok := reg.types[name]
	return rt, ok
}

// All returns the registered resource types sorted by name.
func (reg *Registry) All() []*ResourceType {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	names := make([]string, 0, len(reg.types))
	for name := range reg.types {
		names = append(names, name)
	}
	sort.Strings(names)

	types := make([]*ResourceType, len(names))
	for i, name := range names {
		types[i] = reg.types[name]
	}
	return types
}

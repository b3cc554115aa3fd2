package terminology

import (
	"errors"
	"fmt"
	"strings"
)

// Table names one vocabulary mapping table.
type Table string

const (
	SpecimenType     Table = "specimen-type"
	ExtractionMethod Table = "extraction-method"
	ContainerType    Table = "container-type"
)

// SNOMEDSystem is the code system every table maps into.
const SNOMEDSystem = "http://snomed.info/sct"

var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrMalformedRow = errors.New("malformed row")
	ErrUnknownTable = errors.New("unknown table")
)

// Entry is one row of a mapping table.
type Entry struct {
	LocalCode      string `json:"local_code"`
	LocalShortName string `json:"local_short_name"`
	Code           string `json:"code"`
	Display        string `json:"display"`
}

type table struct {
	byCode map[string]Entry
	byName map[string]Entry
}

// Registry is an immutable set of mapping tables. It is safe for concurrent
// use by any number of mappers.
type Registry struct {
	tables map[Table]*table
}

// NewRegistry builds a registry from decoded rows. A key that appears twice in
// one table fails the whole registry.
func NewRegistry(rows map[Table][]Entry) (*Registry, error) {
	reg := &Registry{tables: make(map[Table]*table, len(rows))}
	for name, entries := range rows {
		t, err := newTable(name, entries)
		if err != nil {
			return nil, err
		}
		reg.tables[name] = t
	}
	return reg, nil
}

var knownTables = map[Table]struct{}{
	SpecimenType:     {},
	ExtractionMethod: {},
	ContainerType:    {},
}

func newTable(name Table, entries []Entry) (*table, error) {
	if _, ok := knownTables[name]; !ok {
		return nil, fmt.Errorf("table '%s': %w", name, ErrUnknownTable)
	}
	t := &table{
		byCode: make(map[string]Entry, len(entries)),
		byName: make(map[string]Entry, len(entries)),
	}
	for _, entry := range entries {
		if _, exists := t.byCode[entry.LocalCode]; exists {
			return nil, fmt.Errorf("table '%s' has key '%s' more than once, please clean up the mapping definition: %w",
				name, entry.LocalCode, ErrDuplicateKey)
		}
		t.byCode[entry.LocalCode] = entry
		// first short name wins
		nameKey := normalizeName(entry.LocalShortName)
		if _, exists := t.byName[nameKey]; nameKey != "" && !exists {
			t.byName[nameKey] = entry
		}
	}
	return t, nil
}

// Resolve looks a local string up by local code, falling back to a
// case-insensitive match on the local short name.
func (r *Registry) Resolve(name Table, key string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	t, ok := r.tables[name]
	if !ok {
		return Entry{}, false
	}
	if entry, ok := t.byCode[key]; ok {
		return entry, true
	}
	trimmed := strings.TrimSpace(key)
	if entry, ok := t.byCode[trimmed]; ok {
		return entry, true
	}
	entry, ok := t.byName[normalizeName(trimmed)]
	return entry, ok
}

func (r *Registry) Has(name Table) bool {
	if r == nil {
		return false
	}
	_, ok := r.tables[name]
	return ok
}

// Size returns the number of rows in a table.
func (r *Registry) Size(name Table) int {
	if r == nil {
		return 0
	}
	if t, ok := r.tables[name]; ok {
		return len(t.byCode)
	}
	return 0
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

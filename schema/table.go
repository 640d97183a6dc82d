package schema

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Policy decides what an unsupported version or variant does to the connection.
type Policy uint8

const (
	PolicyDefault Policy = iota
	PolicyDrop
	PolicyFatal
)

func (p Policy) String() string {
	switch p {
	case PolicyDrop:
		return "drop"
	case PolicyFatal:
		return "fatal"
	default:
		return "default"
	}
}

// Variant is one wire shape of a kind over an inclusive version range.
type Variant struct {
	Kind       Kind
	MinVersion int32
	MaxVersion int32 // 0 means no upper bound
	Schema     *RecordSchema
	// OnUnsupported applies when no case matches the discriminant.
	OnUnsupported Policy
}

func (v *Variant) upper() int32 {
	if v.MaxVersion == 0 {
		return math.MaxInt32
	}
	return v.MaxVersion
}

// Covers reports whether version falls in the variant's range.
func (v *Variant) Covers(version int32) bool {
	return version >= v.MinVersion && version <= v.upper()
}

func (v *Variant) String() string {
	if v.MaxVersion == 0 {
		return fmt.Sprintf("%s[%d..]", v.Kind, v.MinVersion)
	}
	return fmt.Sprintf("%s[%d..%d]", v.Kind, v.MinVersion, v.MaxVersion)
}

var ErrTableFrozen = errors.New("schema: table is frozen")

// Table is the process-wide variant registry. It is written during startup
// and read concurrently once frozen.
type Table struct {
	mu       sync.RWMutex
	frozen   bool
	variants map[Kind][]*Variant
	policies map[Kind]Policy
}

func NewTable() *Table {
	return &Table{
		variants: make(map[Kind][]*Variant),
		policies: make(map[Kind]Policy),
	}
}

// Register validates v and adds it. Overlapping ranges, dependency cycles and
// unknown arguments are rejected.
func (t *Table) Register(v *Variant) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrTableFrozen
	}
	if v.Kind == "" || v.Schema == nil {
		return registrationf("variant without kind or schema")
	}
	if v.MinVersion <= 0 || v.upper() < v.MinVersion {
		return registrationf("%s: invalid version range", v)
	}
	for _, other := range t.variants[v.Kind] {
		if v.MinVersion <= other.upper() && other.MinVersion <= v.upper() {
			return registrationf("%s overlaps %s", v, other)
		}
	}
	if v.Schema.outerRefs() != nil {
		return registrationf("%s: top-level schema refers to outer fields", v)
	}
	if err := v.Schema.compile(make(map[*RecordSchema]bool)); err != nil {
		return err
	}
	list := append(t.variants[v.Kind], v)
	sort.Slice(list, func(i, j int) bool { return list[i].MinVersion < list[j].MinVersion })
	t.variants[v.Kind] = list
	return nil
}

// MustRegister registers every variant and panics on the first error.
func (t *Table) MustRegister(vs ...*Variant) {
	for _, v := range vs {
		if err := t.Register(v); err != nil {
			panic(err)
		}
	}
}

// SetPolicy overrides the unsupported-version policy of a kind.
func (t *Table) SetPolicy(kind Kind, p Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policies[kind] = p
}

// Policy returns the unsupported-version policy of a kind.
func (t *Table) Policy(kind Kind) Policy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.policies[kind]
}

// Freeze stops further registration.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Lookup returns the unique variant of kind covering version.
func (t *Table) Lookup(kind Kind, version int32) (*Variant, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, v := range t.variants[kind] {
		if v.Covers(version) {
			return v, nil
		}
	}
	return nil, &Error{Class: ErrUnsupportedVersion, Kind: kind, Version: version}
}

// Variants returns the variants of kind ordered by MinVersion.
func (t *Table) Variants(kind Kind) []*Variant {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Variant(nil), t.variants[kind]...)
}

// Kinds returns every registered kind in sorted order.
func (t *Table) Kinds() []Kind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	kinds := make([]Kind, 0, len(t.variants))
	for k := range t.variants {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

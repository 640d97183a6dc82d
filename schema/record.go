package schema

import (
	"github.com/google/uuid"
)

// Record is an ordered name to value store. A field that is absent by its
// presence predicate is not stored at all, which Has reports.
type Record struct {
	names   []string
	values  map[string]any
	caseKey string
}

func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores v under name, keeping the position of an existing name.
func (r *Record) Set(name string, v any) *Record {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
	return r
}

func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

func (r *Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Delete removes name.
func (r *Record) Delete(name string) {
	if _, ok := r.values[name]; !ok {
		return
	}
	delete(r.values, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
}

// Names returns field names in insertion order.
func (r *Record) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Record) Len() int {
	return len(r.names)
}

// Case returns the polymorphic case the record was decoded or encoded as.
// It is empty for records without a discriminant.
func (r *Record) Case() string {
	return r.caseKey
}

// Clone returns a shallow copy.
func (r *Record) Clone() *Record {
	c := &Record{
		names:   append([]string(nil), r.names...),
		values:  make(map[string]any, len(r.values)),
		caseKey: r.caseKey,
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Int returns an integer field widened to int64, or 0.
func (r *Record) Int(name string) int64 {
	v, _ := r.Get(name)
	n, _ := toInt64(v)
	return n
}

func (r *Record) Bool(name string) bool {
	v, _ := r.Get(name)
	b, _ := v.(bool)
	return b
}

func (r *Record) Float(name string) float64 {
	v, _ := r.Get(name)
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

func (r *Record) String(name string) string {
	v, _ := r.Get(name)
	s, _ := v.(string)
	return s
}

func (r *Record) Bytes(name string) []byte {
	v, _ := r.Get(name)
	b, _ := v.([]byte)
	return b
}

func (r *Record) UUID(name string) uuid.UUID {
	v, _ := r.Get(name)
	u, _ := v.(uuid.UUID)
	return u
}

// Child returns a nested record, or nil. An Optional holding a record is unwrapped.
func (r *Record) Child(name string) *Record {
	v, _ := r.Get(name)
	rec, _ := v.(*Record)
	return rec
}

func (r *Record) List(name string) []any {
	v, _ := r.Get(name)
	l, _ := v.([]any)
	return l
}

// Message is a decoded record tagged with its kind.
type Message struct {
	Kind Kind
	*Record
}

func NewMessage(kind Kind) *Message {
	return &Message{Kind: kind, Record: NewRecord()}
}

// WithCase sets the polymorphic case key, for messages built by handlers.
func (m *Message) WithCase(key string) *Message {
	m.caseKey = key
	return m
}

// Args is the view of declared dependency arguments handed to predicates,
// length functions and compute rules. Absent arguments read as zero values.
type Args map[string]any

func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Args) Get(name string) any { return a[name] }

func (a Args) Int(name string) int64 {
	n, _ := toInt64(a[name])
	return n
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Bytes(name string) []byte {
	b, _ := a[name].([]byte)
	return b
}

func (a Args) Child(name string) *Record {
	r, _ := a[name].(*Record)
	return r
}

func (a Args) List(name string) []any {
	l, _ := a[name].([]any)
	return l
}

// SynthInput is handed to compute rules.
type SynthInput struct {
	Args
	Env *Env
}

// Migrate runs a structured blob through the datafix bridge from the frame's
// data version to the translation target's.
func (in SynthInput) Migrate(blob []byte, key string) ([]byte, error) {
	return in.Env.migrate(blob, key, true)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	}
	return 0, false
}

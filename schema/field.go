package schema

import "strings"

// OuterPrefix marks a dependency argument that names a field of the
// enclosing record instead of a sibling.
const OuterPrefix = "outer."

// Predicate decides whether a field is present, from its declared arguments.
type Predicate struct {
	Args []string
	Fn   func(Args) bool
}

// LengthKind selects how the element count or byte size of a field is known.
type LengthKind uint8

const (
	LengthPrefixed  LengthKind = iota // VarInt count before the elements
	LengthConstant                    // fixed count, nothing on the wire
	LengthRaw                         // VarInt byte size before a nested record
	LengthComputed                    // derived from other fields
	LengthRemaining                   // consumes the rest of the enclosing frame
)

type LengthSpec struct {
	Kind LengthKind
	N    int
	Args []string
	Fn   func(Args) (int, error)
}

// FailureMode is the policy applied when a computed field cannot be derived.
type FailureMode uint8

const (
	failureUnset FailureMode = iota
	FailAbort
	FailSentinel
)

func (m FailureMode) String() string {
	switch m {
	case FailAbort:
		return "abort"
	case FailSentinel:
		return "sentinel"
	default:
		return "unset"
	}
}

// Synthesis describes a field that is absent on the wire.
type Synthesis struct {
	HasDefault bool
	Default    any
	Args       []string
	Compute    func(SynthInput) (any, error)
	OnFailure  FailureMode
	Sentinel   any
}

// Field describes one named value of a record.
type Field struct {
	Name     string
	Type     WireType
	Elem     *Field        // element of List and Optional
	Schema   *RecordSchema // Record
	Enum     *Enum
	Presence *Predicate
	Length   LengthSpec
	Synth    *Synthesis
	Registry string // namespace of a registry reference
	Datafix  string // migration key of a structured blob
}

func newField(name string, t WireType) *Field {
	return &Field{Name: name, Type: t}
}

func Bool(name string) *Field    { return newField(name, TypeBool) }
func Int8(name string) *Field    { return newField(name, TypeInt8) }
func UInt8(name string) *Field   { return newField(name, TypeUInt8) }
func Int16(name string) *Field   { return newField(name, TypeInt16) }
func UInt16(name string) *Field  { return newField(name, TypeUInt16) }
func Int32(name string) *Field   { return newField(name, TypeInt32) }
func Int64(name string) *Field   { return newField(name, TypeInt64) }
func Float32(name string) *Field { return newField(name, TypeFloat32) }
func Float64(name string) *Field { return newField(name, TypeFloat64) }
func VarInt(name string) *Field  { return newField(name, TypeVarInt) }
func VarLong(name string) *Field { return newField(name, TypeVarLong) }
func String(name string) *Field  { return newField(name, TypeString) }
func Bytes(name string) *Field   { return newField(name, TypeBytes) }
func UUID(name string) *Field    { return newField(name, TypeUUID) }

// EnumOf creates a field holding one constant of e.
func EnumOf(name string, e *Enum) *Field {
	f := newField(name, TypeEnum)
	f.Enum = e
	return f
}

// Nested creates a field holding a record of schema s.
func Nested(name string, s *RecordSchema) *Field {
	f := newField(name, TypeRecord)
	f.Schema = s
	return f
}

// List creates a list field. The element descriptor's name is ignored.
func List(name string, elem *Field) *Field {
	f := newField(name, TypeList)
	f.Elem = elem
	return f
}

// Optional creates a field encoded as a presence bool followed by elem.
func Optional(name string, elem *Field) *Field {
	f := newField(name, TypeOptional)
	f.Elem = elem
	return f
}

// OnlyIf makes the field conditional on fn evaluated over args.
func (f *Field) OnlyIf(fn func(Args) bool, args ...string) *Field {
	f.Presence = &Predicate{Args: args, Fn: fn}
	return f
}

// Constant fixes the element count (List) or byte size (Bytes) without a prefix.
func (f *Field) Constant(n int) *Field {
	f.Length = LengthSpec{Kind: LengthConstant, N: n}
	return f
}

// Raw prefixes a nested record with its encoded byte size.
func (f *Field) Raw() *Field {
	f.Length = LengthSpec{Kind: LengthRaw}
	return f
}

// Remaining makes a List or Bytes field consume the rest of its frame.
func (f *Field) Remaining() *Field {
	f.Length = LengthSpec{Kind: LengthRemaining}
	return f
}

// LengthFrom derives the element count from other fields.
func (f *Field) LengthFrom(fn func(Args) (int, error), args ...string) *Field {
	f.Length = LengthSpec{Kind: LengthComputed, Args: args, Fn: fn}
	return f
}

// Default synthesizes the field with a constant value.
func (f *Field) Default(v any) *Field {
	f.Synth = &Synthesis{HasDefault: true, Default: v}
	return f
}

// Compute synthesizes the field from other fields and the session.
// A failure policy must follow with OrSentinel or OrAbort.
func (f *Field) Compute(fn func(SynthInput) (any, error), args ...string) *Field {
	f.Synth = &Synthesis{Args: args, Compute: fn}
	return f
}

// OrSentinel substitutes v when the computation fails.
func (f *Field) OrSentinel(v any) *Field {
	if f.Synth != nil {
		f.Synth.OnFailure = FailSentinel
		f.Synth.Sentinel = v
	}
	return f
}

// OrAbort fails the whole message when the computation fails.
func (f *Field) OrAbort() *Field {
	if f.Synth != nil {
		f.Synth.OnFailure = FailAbort
	}
	return f
}

// RegistryRef marks the integer as an id in the namespace's registry.
func (f *Field) RegistryRef(namespace string) *Field {
	f.Registry = namespace
	return f
}

// Migrated marks a structured blob to be run through the datafix bridge.
func (f *Field) Migrated(key string) *Field {
	f.Datafix = key
	return f
}

// Synthesized reports whether the field never touches the wire.
func (f *Field) Synthesized() bool {
	return f.Synth != nil
}

// deps returns every argument name the field depends on.
func (f *Field) deps() []string {
	var out []string
	if f.Presence != nil {
		out = append(out, f.Presence.Args...)
	}
	if f.Length.Kind == LengthComputed {
		out = append(out, f.Length.Args...)
	}
	if f.Synth != nil {
		out = append(out, f.Synth.Args...)
	}
	return out
}

// nestedSchemas returns record schemas reachable through f without another record boundary.
func (f *Field) nestedSchemas() []*RecordSchema {
	switch f.Type {
	case TypeRecord:
		return []*RecordSchema{f.Schema}
	case TypeList, TypeOptional:
		if f.Elem != nil {
			return f.Elem.nestedSchemas()
		}
	}
	return nil
}

func isOuter(arg string) (string, bool) {
	if strings.HasPrefix(arg, OuterPrefix) {
		return strings.TrimPrefix(arg, OuterPrefix), true
	}
	return "", false
}

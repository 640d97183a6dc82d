package schema

import (
	"sort"
)

// OtherwiseCase is the case key of records matched by the otherwise branch.
const OtherwiseCase = "*"

// RecordSchema is an ordered field list, optionally followed by a
// discriminant and per-case tails.
type RecordSchema struct {
	Name   string
	Fields []*Field
	Poly   *Polymorphic

	compiled bool
	base     *plan
	cases    map[string]*plan
	other    *plan
}

// Polymorphic selects the tail of a record by the value of Tag.
type Polymorphic struct {
	Tag       *Field
	Cases     map[string][]*Field
	Otherwise []*Field
	// HasOtherwise distinguishes an empty otherwise branch from none.
	HasOtherwise bool
}

// NewSchema creates a plain record schema.
func NewSchema(name string, fields ...*Field) *RecordSchema {
	return &RecordSchema{Name: name, Fields: fields}
}

// Add appends fields. Used to close recursive schemas over themselves.
func (s *RecordSchema) Add(fields ...*Field) *RecordSchema {
	s.Fields = append(s.Fields, fields...)
	return s
}

// Switch makes the schema polymorphic on tag, which must be an Enum or String field.
func (s *RecordSchema) Switch(tag *Field) *RecordSchema {
	s.Poly = &Polymorphic{Tag: tag, Cases: make(map[string][]*Field)}
	return s
}

// Case declares the tail for one discriminant value.
func (s *RecordSchema) Case(key string, fields ...*Field) *RecordSchema {
	s.Poly.Cases[key] = fields
	return s
}

// Otherwise declares the tail for unmatched discriminant values.
func (s *RecordSchema) Otherwise(fields ...*Field) *RecordSchema {
	s.Poly.Otherwise = fields
	s.Poly.HasOtherwise = true
	return s
}

// CaseKeys lists declared cases in sorted order, followed by OtherwiseCase if present.
func (s *RecordSchema) CaseKeys() []string {
	if s.Poly == nil {
		return nil
	}
	keys := make([]string, 0, len(s.Poly.Cases)+1)
	for k := range s.Poly.Cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if s.Poly.HasOtherwise {
		keys = append(keys, OtherwiseCase)
	}
	return keys
}

// selectCase matches a discriminant value to a case key.
func (s *RecordSchema) selectCase(disc string) (string, *plan, bool) {
	if p, ok := s.cases[disc]; ok {
		return disc, p, true
	}
	if s.other != nil {
		return OtherwiseCase, s.other, true
	}
	return "", nil, false
}

// Select returns the case key and full field list matched by a discriminant value.
func (s *RecordSchema) Select(disc string) (string, []*Field, bool) {
	if s.Poly == nil {
		return "", s.Fields, true
	}
	key, p, ok := s.selectCase(disc)
	if !ok {
		return "", nil, false
	}
	return key, p.fields, true
}

// FieldsFor returns the full field list of a case, or the plain field list.
func (s *RecordSchema) FieldsFor(caseKey string) []*Field {
	if s.Poly == nil {
		return s.Fields
	}
	if caseKey == "" {
		return s.base.fields
	}
	if caseKey == OtherwiseCase {
		if s.other == nil {
			return nil
		}
		return s.other.fields
	}
	if p, ok := s.cases[caseKey]; ok {
		return p.fields
	}
	return nil
}

// plan is an immutable decode plan: the wire-ordered field list and the
// order in which to evaluate it.
type plan struct {
	fields []*Field
	order  []int
	index  map[string]int
}

// outerRefs lists the enclosing-record fields a schema depends on.
func (s *RecordSchema) outerRefs() []string {
	var refs []string
	add := func(fields []*Field) {
		for _, f := range fields {
			for _, a := range f.deps() {
				if name, ok := isOuter(a); ok {
					refs = append(refs, name)
				}
			}
		}
	}
	add(s.Fields)
	if s.Poly != nil {
		add([]*Field{s.Poly.Tag})
		for _, fs := range s.Poly.Cases {
			add(fs)
		}
		add(s.Poly.Otherwise)
	}
	return refs
}

// compile validates s and everything nested in it, building decode plans.
// Recursive schemas are compiled once; the in-progress set breaks the cycle.
func (s *RecordSchema) compile(inProgress map[*RecordSchema]bool) error {
	if s.compiled || inProgress[s] {
		return nil
	}
	inProgress[s] = true
	defer delete(inProgress, s)

	if s.Poly == nil {
		p, err := buildPlan(s.Name, s.Fields, inProgress)
		if err != nil {
			return err
		}
		s.base = p
		s.compiled = true
		return nil
	}

	tag := s.Poly.Tag
	if tag == nil || (tag.Type != TypeEnum && tag.Type != TypeString) {
		return registrationf("%s: discriminant must be an enum or string field", s.Name)
	}
	if tag.Synthesized() || tag.Presence != nil {
		return registrationf("%s: discriminant %q must be unconditional and on the wire", s.Name, tag.Name)
	}
	head := append(append([]*Field(nil), s.Fields...), tag)
	base, err := buildPlan(s.Name, head, inProgress)
	if err != nil {
		return err
	}
	cases := make(map[string]*plan, len(s.Poly.Cases))
	for key, tail := range s.Poly.Cases {
		if tag.Type == TypeEnum {
			if _, ok := tag.Enum.code(key); !ok {
				return registrationf("%s: case %q is not a constant of %s", s.Name, key, tag.Enum.Name)
			}
		}
		p, err := buildPlan(s.Name+"/"+key, append(append([]*Field(nil), head...), tail...), inProgress)
		if err != nil {
			return err
		}
		cases[key] = p
	}
	var other *plan
	if s.Poly.HasOtherwise {
		other, err = buildPlan(s.Name+"/"+OtherwiseCase, append(append([]*Field(nil), head...), s.Poly.Otherwise...), inProgress)
		if err != nil {
			return err
		}
	}
	s.base, s.cases, s.other = base, cases, other
	s.compiled = true
	return nil
}

func buildPlan(owner string, fields []*Field, inProgress map[*RecordSchema]bool) (*plan, error) {
	n := len(fields)
	p := &plan{fields: fields, index: make(map[string]int, n)}
	for i, f := range fields {
		if f == nil || f.Name == "" {
			return nil, registrationf("%s: field %d has no name", owner, i)
		}
		if _, dup := p.index[f.Name]; dup {
			return nil, registrationf("%s: duplicate field %q", owner, f.Name)
		}
		p.index[f.Name] = i
		if err := checkField(owner, f, inProgress); err != nil {
			return nil, err
		}
	}

	edges := make([][]int, n)
	indeg := make([]int, n)
	addEdge := func(from, to int) {
		edges[from] = append(edges[from], to)
		indeg[to]++
	}
	prevWire := -1
	for i, f := range fields {
		if !f.Synthesized() {
			if prevWire >= 0 {
				addEdge(prevWire, i)
			}
			prevWire = i
		}
		for _, a := range f.deps() {
			if _, outer := isOuter(a); outer {
				continue
			}
			j, ok := p.index[a]
			if !ok {
				return nil, registrationf("%s.%s: unknown argument %q", owner, f.Name, a)
			}
			if j == i {
				return nil, registrationf("%s.%s: depends on itself", owner, f.Name)
			}
			addEdge(j, i)
		}
		for _, nested := range f.nestedSchemas() {
			for _, ref := range nested.outerRefs() {
				j, ok := p.index[ref]
				if !ok {
					return nil, registrationf("%s.%s: nested %s refers to unknown outer field %q", owner, f.Name, nested.Name, ref)
				}
				if j == i {
					return nil, registrationf("%s.%s: nested %s refers to its own field", owner, f.Name, nested.Name)
				}
				addEdge(j, i)
			}
		}
	}

	// Kahn's algorithm, always taking the lowest ready index so the order
	// stays as close to declaration order as the dependencies allow.
	ready := make([]bool, n)
	for i := range fields {
		ready[i] = indeg[i] == 0
	}
	done := make([]bool, n)
	for len(p.order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if ready[i] && !done[i] {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, registrationf("%s: dependency cycle among fields", owner)
		}
		done[next] = true
		p.order = append(p.order, next)
		for _, to := range edges[next] {
			indeg[to]--
			if indeg[to] == 0 {
				ready[to] = true
			}
		}
	}
	return p, nil
}

func checkField(owner string, f *Field, inProgress map[*RecordSchema]bool) error {
	name := owner + "." + f.Name
	if f.Synth != nil && !f.Synth.HasDefault {
		if f.Synth.Compute == nil {
			return registrationf("%s: synthesized without default or compute rule", name)
		}
		if f.Synth.OnFailure == failureUnset {
			return registrationf("%s: compute rule has no failure policy", name)
		}
	}
	if f.Presence != nil && f.Presence.Fn == nil {
		return registrationf("%s: presence predicate has no function", name)
	}
	switch f.Length.Kind {
	case LengthComputed:
		if f.Length.Fn == nil {
			return registrationf("%s: computed length has no function", name)
		}
		fallthrough
	case LengthConstant, LengthRemaining:
		if f.Type != TypeList && f.Type != TypeBytes {
			return registrationf("%s: length spec requires a list or bytes field", name)
		}
	case LengthRaw:
		if f.Type != TypeRecord {
			return registrationf("%s: raw length requires a record field", name)
		}
	}
	if f.Registry != "" && f.Type != TypeVarInt && f.Type != TypeInt32 {
		return registrationf("%s: registry reference must be varint or int32", name)
	}
	if f.Datafix != "" && f.Type != TypeBytes {
		return registrationf("%s: migrated blob must be bytes", name)
	}
	switch f.Type {
	case TypeEnum:
		if f.Enum == nil || len(f.Enum.Names) == 0 {
			return registrationf("%s: enum without constants", name)
		}
	case TypeRecord:
		if f.Schema == nil {
			return registrationf("%s: record without schema", name)
		}
		return f.Schema.compile(inProgress)
	case TypeList, TypeOptional:
		if f.Elem == nil {
			return registrationf("%s: %s without element", name, f.Type)
		}
		if f.Elem.Synth != nil || f.Elem.Presence != nil {
			return registrationf("%s: element cannot be synthesized or conditional", name)
		}
		return checkField(owner, elemNamed(f), inProgress)
	case 0:
		return registrationf("%s: missing wire type", name)
	}
	return nil
}

func elemNamed(f *Field) *Field {
	e := *f.Elem
	e.Name = f.Name + "[]"
	return &e
}

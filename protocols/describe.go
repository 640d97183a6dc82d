package protocols

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Mmx233/ProtoBridge/schema"
)

// FieldInfo describes one field for inspection tools.
type FieldInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Enum        []string    `json:"enum,omitempty"`
	Conditional bool        `json:"conditional,omitempty"`
	Synthesized bool        `json:"synthesized,omitempty"`
	Registry    string      `json:"registry,omitempty"`
	Datafix     string      `json:"datafix,omitempty"`
	Record      string      `json:"record,omitempty"`
	Fields      []FieldInfo `json:"fields,omitempty"`
	Elem        *FieldInfo  `json:"elem,omitempty"`
}

// VariantInfo describes one variant and the packet ids it travels under.
type VariantInfo struct {
	From         string                 `json:"from"`
	To           string                 `json:"to,omitempty"`
	Fields       []FieldInfo            `json:"fields"`
	Discriminant string                 `json:"discriminant,omitempty"`
	Cases        map[string][]FieldInfo `json:"cases,omitempty"`
	Clientbound  map[string]int32       `json:"clientbound,omitempty"`
	Serverbound  map[string]int32       `json:"serverbound,omitempty"`
}

type KindInfo struct {
	Kind     schema.Kind   `json:"kind"`
	Variants []VariantInfo `json:"variants"`
}

// Describe lists every kind with its variants, oldest first.
func (s *Set) Describe() []KindInfo {
	table := s.Protocol.Table
	kinds := table.Kinds()
	out := make([]KindInfo, 0, len(kinds))
	for _, kind := range kinds {
		info := KindInfo{Kind: kind}
		for _, v := range table.Variants(kind) {
			info.Variants = append(info.Variants, s.describeVariant(v))
		}
		out = append(out, info)
	}
	return out
}

func (s *Set) describeVariant(v *schema.Variant) VariantInfo {
	info := VariantInfo{
		From:   Name(v.MinVersion),
		Fields: describeFields(v.Schema.Fields, map[*schema.RecordSchema]bool{v.Schema: true}),
	}
	if v.MaxVersion != 0 {
		info.To = Name(v.MaxVersion)
	}
	if poly := v.Schema.Poly; poly != nil {
		info.Discriminant = poly.Tag.Name
		info.Cases = make(map[string][]FieldInfo, len(poly.Cases)+1)
		for key, fields := range poly.Cases {
			info.Cases[key] = describeFields(fields, map[*schema.RecordSchema]bool{v.Schema: true})
		}
		if poly.HasOtherwise {
			info.Cases[schema.OtherwiseCase] = describeFields(poly.Otherwise, map[*schema.RecordSchema]bool{v.Schema: true})
		}
	}
	for _, ver := range versions {
		if !v.Covers(ver.Protocol) {
			continue
		}
		if id, ok := s.IDs.ID(schema.Clientbound, ver.Protocol, v.Kind); ok {
			if info.Clientbound == nil {
				info.Clientbound = make(map[string]int32)
			}
			info.Clientbound[ver.Name] = id
		}
		if id, ok := s.IDs.ID(schema.Serverbound, ver.Protocol, v.Kind); ok {
			if info.Serverbound == nil {
				info.Serverbound = make(map[string]int32)
			}
			info.Serverbound[ver.Name] = id
		}
	}
	return info
}

// describeFields stops at records already being described, which is how
// tail-recursive records end.
func describeFields(fields []*schema.Field, seen map[*schema.RecordSchema]bool) []FieldInfo {
	out := make([]FieldInfo, 0, len(fields))
	for _, f := range fields {
		out = append(out, describeField(f, seen))
	}
	return out
}

func describeField(f *schema.Field, seen map[*schema.RecordSchema]bool) FieldInfo {
	info := FieldInfo{
		Name:        f.Name,
		Type:        f.Type.String(),
		Conditional: f.Presence != nil,
		Synthesized: f.Synth != nil,
		Registry:    f.Registry,
		Datafix:     f.Datafix,
	}
	if f.Enum != nil {
		info.Enum = f.Enum.Names
	}
	if f.Schema != nil {
		info.Record = f.Schema.Name
		if !seen[f.Schema] {
			seen[f.Schema] = true
			info.Fields = describeFields(f.Schema.Fields, seen)
			delete(seen, f.Schema)
		}
	}
	if f.Elem != nil {
		elem := describeField(f.Elem, seen)
		info.Elem = &elem
	}
	return info
}

// Check verifies that every packet id resolves to a variant of its version
// and that every kind of the current version can be sent.
func (s *Set) Check() error {
	var errs []error
	table := s.Protocol.Table
	for _, v := range versions {
		for _, dir := range []schema.Direction{schema.Clientbound, schema.Serverbound} {
			kinds := s.IDs.Kinds(dir, v.Protocol)
			names := make([]string, 0, len(kinds))
			for kind := range kinds {
				names = append(names, string(kind))
			}
			sort.Strings(names)
			for _, name := range names {
				kind := schema.Kind(name)
				if _, err := table.Lookup(kind, v.Protocol); err != nil {
					errs = append(errs, fmt.Errorf("%s %s 0x%02x in %s: %w", dir, kind, kinds[kind], v.Name, err))
				}
			}
		}
	}
	for _, kind := range table.Kinds() {
		if _, err := table.Lookup(kind, Current); err != nil {
			continue
		}
		_, cb := s.IDs.ID(schema.Clientbound, Current, kind)
		_, sb := s.IDs.ID(schema.Serverbound, Current, kind)
		if !cb && !sb {
			errs = append(errs, fmt.Errorf("%s has no packet id in %s", kind, Name(Current)))
		}
	}
	return errors.Join(errs...)
}

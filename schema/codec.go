package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Mmx233/ProtoBridge/protocol"
	"github.com/google/uuid"
)

// MaxListLength caps prefixed element counts before anything is allocated.
const MaxListLength = protocol.MaxFrameSize

// Codec decodes and encodes message bodies of one protocol version.
type Codec struct {
	Resolver *Resolver
	Env      *Env
}

// Decode reads a message body of kind. The whole body must be consumed.
func (c *Codec) Decode(kind Kind, body []byte) (*Message, error) {
	version := c.Env.Version
	res, err := c.Resolver.Resolve(kind, version)
	if err != nil {
		return nil, err
	}
	msg := &Message{Kind: kind, Record: NewRecord()}
	r := protocol.NewReader(body)
	sc := &scope{rec: msg.Record}
	d := decoder{env: c.Env}
	if err = d.run(r, res.plan, sc, 0, string(kind)); err != nil {
		return nil, withMessage(err, kind, version)
	}
	if s := res.Variant.Schema; s.Poly != nil {
		disc := msg.String(s.Poly.Tag.Name)
		cres, err := c.Resolver.ResolveCase(kind, version, disc)
		if err != nil {
			return nil, err
		}
		if err = d.run(r, cres.plan, sc, len(res.plan.fields), string(kind)); err != nil {
			return nil, withMessage(err, kind, version)
		}
		msg.caseKey = cres.Case
	}
	if r.Remaining() != 0 {
		return nil, withMessage(malformed(string(kind), fmt.Errorf("%d trailing bytes", r.Remaining())), kind, version)
	}
	return msg, nil
}

// Encode writes the body of msg as the variant of its kind for the codec's version.
func (c *Codec) Encode(msg *Message, w *protocol.Writer) error {
	version := c.Env.Version
	res, err := c.Resolver.Resolve(msg.Kind, version)
	if err != nil {
		return err
	}
	p := res.plan
	if s := res.Variant.Schema; s.Poly != nil {
		cres, err := c.Resolver.ResolveCase(msg.Kind, version, msg.String(s.Poly.Tag.Name))
		if err != nil {
			return err
		}
		p = cres.plan
	}
	e := encoder{env: c.Env}
	if err = e.fields(w, p.fields, &scope{rec: msg.Record}, string(msg.Kind)); err != nil {
		return withMessage(err, msg.Kind, version)
	}
	return nil
}

type scope struct {
	rec   *Record
	outer *scope
}

func (sc *scope) args(names []string) Args {
	if len(names) == 0 {
		return nil
	}
	a := make(Args, len(names))
	for _, n := range names {
		src := sc.rec
		name := n
		if outer, ok := isOuter(n); ok {
			if sc.outer == nil {
				continue
			}
			src, name = sc.outer.rec, outer
		}
		if v, ok := src.Get(name); ok {
			a[n] = v
		}
	}
	return a
}

func (sc *scope) present(f *Field) bool {
	return f.Presence == nil || f.Presence.Fn(sc.args(f.Presence.Args))
}

func join(path, name string) string {
	return path + "." + name
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

type decoder struct {
	env *Env
}

// run evaluates p in decode order, skipping the first skip fields which an
// earlier pass already handled.
func (d *decoder) run(r *protocol.Reader, p *plan, sc *scope, skip int, path string) error {
	for _, i := range p.order {
		if i < skip {
			continue
		}
		f := p.fields[i]
		if !sc.present(f) {
			continue
		}
		fpath := join(path, f.Name)
		var (
			v   any
			err error
		)
		if f.Synth != nil {
			v, err = d.synthesize(f, sc, fpath)
		} else {
			v, err = d.value(r, f, sc, fpath)
		}
		if err != nil {
			return err
		}
		sc.rec.Set(f.Name, v)
	}
	return nil
}

func (d *decoder) synthesize(f *Field, sc *scope, path string) (any, error) {
	s := f.Synth
	if s.HasDefault {
		return cloneDefault(s.Default), nil
	}
	v, err := s.Compute(SynthInput{Args: sc.args(s.Args), Env: d.env})
	if err == nil {
		return v, nil
	}
	var se *Error
	if errors.As(err, &se) && se.Class == ErrMigrationFailure {
		if se.Field == "" {
			se.Field = path
		}
		return nil, se
	}
	if s.OnFailure == FailSentinel {
		d.env.Logger.Debug().Err(err).Str("field", path).Msg("synthesis failed, using sentinel")
		return cloneDefault(s.Sentinel), nil
	}
	return nil, &Error{Class: ErrSynthesisFailure, Field: path, Reason: "policy " + s.OnFailure.String(), Cause: err}
}

func cloneDefault(v any) any {
	switch x := v.(type) {
	case []any:
		return append([]any(nil), x...)
	case []byte:
		return append([]byte(nil), x...)
	case *Record:
		if x == nil {
			return x
		}
		return x.Clone()
	}
	return v
}

func (d *decoder) record(r *protocol.Reader, s *RecordSchema, outer *scope, path string) (*Record, error) {
	rec := NewRecord()
	sc := &scope{rec: rec, outer: outer}
	if err := d.run(r, s.base, sc, 0, path); err != nil {
		return nil, err
	}
	if s.Poly != nil {
		disc := rec.String(s.Poly.Tag.Name)
		key, p, ok := s.selectCase(disc)
		if !ok {
			return nil, &Error{Class: ErrUnsupportedVariant, Field: join(path, s.Poly.Tag.Name), Discriminant: disc}
		}
		if err := d.run(r, p, sc, len(s.base.fields), path); err != nil {
			return nil, err
		}
		rec.caseKey = key
	}
	return rec, nil
}

func readErr(path string, err error) error {
	if err == nil {
		return nil
	}
	return malformed(path, err)
}

func (d *decoder) value(r *protocol.Reader, f *Field, sc *scope, path string) (any, error) {
	switch f.Type {
	case TypeBool:
		v, err := r.ReadBool()
		return v, readErr(path, err)
	case TypeInt8:
		v, err := r.ReadInt8()
		return v, readErr(path, err)
	case TypeUInt8:
		v, err := r.ReadByte()
		return v, readErr(path, err)
	case TypeInt16:
		v, err := r.ReadInt16()
		return v, readErr(path, err)
	case TypeUInt16:
		v, err := r.ReadUint16()
		return v, readErr(path, err)
	case TypeInt32, TypeVarInt:
		var (
			v   int32
			err error
		)
		if f.Type == TypeVarInt {
			v, err = r.ReadVarInt()
		} else {
			v, err = r.ReadInt32()
		}
		if err != nil {
			return nil, readErr(path, err)
		}
		if f.Registry != "" {
			return d.env.remap(path, f.Registry, v, true)
		}
		return v, nil
	case TypeInt64:
		v, err := r.ReadInt64()
		return v, readErr(path, err)
	case TypeVarLong:
		v, err := r.ReadVarLong()
		return v, readErr(path, err)
	case TypeFloat32:
		v, err := r.ReadFloat32()
		return v, readErr(path, err)
	case TypeFloat64:
		v, err := r.ReadFloat64()
		return v, readErr(path, err)
	case TypeString:
		v, err := r.ReadString()
		return v, readErr(path, err)
	case TypeUUID:
		b, err := r.Read(16)
		if err != nil {
			return nil, readErr(path, err)
		}
		u, err := uuid.FromBytes(b)
		return u, readErr(path, err)
	case TypeBytes:
		b, err := d.bytes(r, f, sc, path)
		if err != nil {
			return nil, err
		}
		if f.Datafix != "" {
			b, err = d.env.migrate(b, f.Datafix, true)
			if err != nil {
				err.(*Error).Field = path
				return nil, err
			}
		}
		return b, nil
	case TypeEnum:
		code, err := readEnumCode(r, f.Enum)
		if err != nil {
			return nil, readErr(path, err)
		}
		name, ok := f.Enum.name(code)
		if !ok {
			return nil, violation(path, fmt.Sprintf("unknown %s code %d", f.Enum.Name, code))
		}
		return name, nil
	case TypeRecord:
		if f.Length.Kind != LengthRaw {
			return d.record(r, f.Schema, sc, path)
		}
		n, err := r.ReadLength()
		if err != nil {
			return nil, readErr(path, err)
		}
		b, err := r.Read(n)
		if err != nil {
			return nil, readErr(path, err)
		}
		sub := protocol.NewReader(b)
		rec, err := d.record(sub, f.Schema, sc, path)
		if err != nil {
			return nil, err
		}
		if sub.Remaining() != 0 {
			return nil, malformed(path, fmt.Errorf("%d bytes left in raw record", sub.Remaining()))
		}
		return rec, nil
	case TypeList:
		if f.Length.Kind == LengthRemaining {
			var out []any
			for i := 0; r.Remaining() > 0; i++ {
				v, err := d.value(r, f.Elem, sc, index(path, i))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			if out == nil {
				out = []any{}
			}
			return out, nil
		}
		n, err := d.count(r, f, sc, path)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, min(n, r.Remaining()+1))
		for i := 0; i < n; i++ {
			v, err := d.value(r, f.Elem, sc, index(path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case TypeOptional:
		present, err := r.ReadBool()
		if err != nil {
			return nil, readErr(path, err)
		}
		if !present {
			return nil, nil
		}
		return d.value(r, f.Elem, sc, path)
	}
	return nil, violation(path, "unknown wire type "+f.Type.String())
}

func (d *decoder) count(r *protocol.Reader, f *Field, sc *scope, path string) (int, error) {
	switch f.Length.Kind {
	case LengthConstant:
		return f.Length.N, nil
	case LengthComputed:
		n, err := f.Length.Fn(sc.args(f.Length.Args))
		if err != nil {
			return 0, &Error{Class: ErrSchemaViolation, Field: path, Reason: "length", Cause: err}
		}
		if n < 0 {
			return 0, violation(path, "negative computed length")
		}
		return n, nil
	default:
		n, err := r.ReadLength()
		if err != nil {
			return 0, readErr(path, err)
		}
		if n > MaxListLength {
			return 0, malformed(path, fmt.Errorf("list length %d", n))
		}
		return n, nil
	}
}

func (d *decoder) bytes(r *protocol.Reader, f *Field, sc *scope, path string) ([]byte, error) {
	switch f.Length.Kind {
	case LengthRemaining:
		return append([]byte{}, r.ReadRest()...), nil
	case LengthConstant, LengthComputed:
		n, err := d.count(r, f, sc, path)
		if err != nil {
			return nil, err
		}
		b, err := r.Read(n)
		if err != nil {
			return nil, readErr(path, err)
		}
		return append([]byte{}, b...), nil
	default:
		b, err := r.ReadBytes()
		return b, readErr(path, err)
	}
}

func readEnumCode(r *protocol.Reader, e *Enum) (int64, error) {
	switch e.Wire {
	case TypeUInt8:
		b, err := r.ReadByte()
		return int64(b), err
	case TypeInt32:
		v, err := r.ReadInt32()
		return int64(v), err
	default:
		v, err := r.ReadVarInt()
		return int64(v), err
	}
}

type encoder struct {
	env *Env
}

func (e *encoder) fields(w *protocol.Writer, fields []*Field, sc *scope, path string) error {
	for _, f := range fields {
		if f.Synthesized() || !sc.present(f) {
			continue
		}
		fpath := join(path, f.Name)
		v, ok := sc.rec.Get(f.Name)
		if !ok {
			return violation(fpath, "missing value")
		}
		if err := e.value(w, f, v, sc, fpath); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) record(w *protocol.Writer, s *RecordSchema, rec *Record, outer *scope, path string) error {
	fields := s.base.fields
	if s.Poly != nil {
		disc := rec.String(s.Poly.Tag.Name)
		_, p, ok := s.selectCase(disc)
		if !ok {
			return &Error{Class: ErrUnsupportedVariant, Field: join(path, s.Poly.Tag.Name), Discriminant: disc}
		}
		fields = p.fields
	}
	return e.fields(w, fields, &scope{rec: rec, outer: outer}, path)
}

func typeErr(path string, f *Field, v any) error {
	return violation(path, fmt.Sprintf("%T is not a %s value", v, f.Type))
}

func intIn(path string, f *Field, v any, lo, hi int64) (int64, error) {
	n, ok := toInt64(v)
	if !ok {
		return 0, typeErr(path, f, v)
	}
	if n < lo || n > hi {
		return 0, violation(path, fmt.Sprintf("%d out of %s range", n, f.Type))
	}
	return n, nil
}

func (e *encoder) value(w *protocol.Writer, f *Field, v any, sc *scope, path string) error {
	switch f.Type {
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return typeErr(path, f, v)
		}
		w.WriteBool(b)
	case TypeInt8:
		n, err := intIn(path, f, v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return err
		}
		w.WriteInt8(int8(n))
	case TypeUInt8:
		n, err := intIn(path, f, v, 0, math.MaxUint8)
		if err != nil {
			return err
		}
		w.WriteUint8(byte(n))
	case TypeInt16:
		n, err := intIn(path, f, v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		w.WriteInt16(int16(n))
	case TypeUInt16:
		n, err := intIn(path, f, v, 0, math.MaxUint16)
		if err != nil {
			return err
		}
		w.WriteUint16(uint16(n))
	case TypeInt32, TypeVarInt:
		n, err := intIn(path, f, v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		id := int32(n)
		if f.Registry != "" {
			if id, err = e.env.remap(path, f.Registry, id, false); err != nil {
				return err
			}
		}
		if f.Type == TypeVarInt {
			w.WriteVarInt(id)
		} else {
			w.WriteInt32(id)
		}
	case TypeInt64, TypeVarLong:
		n, ok := toInt64(v)
		if !ok {
			return typeErr(path, f, v)
		}
		if f.Type == TypeVarLong {
			w.WriteVarLong(n)
		} else {
			w.WriteInt64(n)
		}
	case TypeFloat32:
		switch x := v.(type) {
		case float32:
			w.WriteFloat32(x)
		case float64:
			w.WriteFloat32(float32(x))
		default:
			return typeErr(path, f, v)
		}
	case TypeFloat64:
		switch x := v.(type) {
		case float32:
			w.WriteFloat64(float64(x))
		case float64:
			w.WriteFloat64(x)
		default:
			return typeErr(path, f, v)
		}
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return typeErr(path, f, v)
		}
		if len(s) > protocol.MaxStringLength {
			return violation(path, "string too long")
		}
		w.WriteString(s)
	case TypeUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return typeErr(path, f, v)
		}
		w.WriteRaw(u[:])
	case TypeBytes:
		b, ok := v.([]byte)
		if !ok {
			return typeErr(path, f, v)
		}
		if f.Datafix != "" {
			var err error
			if b, err = e.env.migrate(b, f.Datafix, false); err != nil {
				err.(*Error).Field = path
				return err
			}
		}
		if err := e.checkCount(f, len(b), sc, path); err != nil {
			return err
		}
		if f.Length.Kind == LengthPrefixed {
			w.WriteBytes(b)
		} else {
			w.WriteRaw(b)
		}
	case TypeEnum:
		name, ok := v.(string)
		if !ok {
			return typeErr(path, f, v)
		}
		code, ok := f.Enum.code(name)
		if !ok {
			return violation(path, fmt.Sprintf("%q is not a constant of %s", name, f.Enum.Name))
		}
		switch f.Enum.Wire {
		case TypeUInt8:
			w.WriteUint8(byte(code))
		case TypeInt32:
			w.WriteInt32(int32(code))
		default:
			w.WriteVarInt(int32(code))
		}
	case TypeRecord:
		rec, ok := v.(*Record)
		if !ok || rec == nil {
			return typeErr(path, f, v)
		}
		if f.Length.Kind != LengthRaw {
			return e.record(w, f.Schema, rec, sc, path)
		}
		buf := protocol.GetBuffer()
		defer protocol.PutBuffer(buf)
		if err := e.record(protocol.NewWriter(buf), f.Schema, rec, sc, path); err != nil {
			return err
		}
		w.WriteVarInt(int32(buf.Len()))
		w.WriteRaw(buf.Bytes())
	case TypeList:
		list, ok := v.([]any)
		if !ok && v != nil {
			return typeErr(path, f, v)
		}
		if err := e.checkCount(f, len(list), sc, path); err != nil {
			return err
		}
		if f.Length.Kind == LengthPrefixed {
			w.WriteVarInt(int32(len(list)))
		}
		for i, elem := range list {
			if err := e.value(w, f.Elem, elem, sc, index(path, i)); err != nil {
				return err
			}
		}
	case TypeOptional:
		if v == nil {
			w.WriteBool(false)
			return nil
		}
		w.WriteBool(true)
		return e.value(w, f.Elem, v, sc, path)
	default:
		return violation(path, "unknown wire type "+f.Type.String())
	}
	return nil
}

// checkCount re-derives constant and computed lengths and compares them
// with the actual element count.
func (e *encoder) checkCount(f *Field, n int, sc *scope, path string) error {
	switch f.Length.Kind {
	case LengthConstant:
		if n != f.Length.N {
			return violation(path, fmt.Sprintf("length %d, want constant %d", n, f.Length.N))
		}
	case LengthComputed:
		want, err := f.Length.Fn(sc.args(f.Length.Args))
		if err != nil {
			return &Error{Class: ErrSchemaViolation, Field: path, Reason: "length", Cause: err}
		}
		if n != want {
			return violation(path, fmt.Sprintf("length %d, computed %d", n, want))
		}
	}
	return nil
}

// Package handler routes decoded messages to the functions that turn them
// into messages of the other side's version.
package handler

import (
	"fmt"

	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
)

// Handler converts one decoded message into zero or more messages. The
// order of the result is the delivery order. Errors are treated as
// semantic failures that drop the message.
type Handler func(msg *schema.Message, ctx *session.Context) ([]*schema.Message, error)

// Partial observes a message before its handler runs. It may only write
// session slots.
type Partial func(msg *schema.Message, ctx *session.Context)

type key struct {
	dir  schema.Direction
	kind schema.Kind
}

type entry struct {
	caseKey  string
	min, max int32 // legacy peer versions, max 0 is open
	h        Handler
}

func (e entry) covers(version int32) bool {
	return version >= e.min && (e.max == 0 || version <= e.max)
}

// Dispatcher is built at startup and read concurrently afterwards.
type Dispatcher struct {
	table    *schema.Table
	current  int32
	handlers map[key][]entry
	partials map[key][]Partial
}

// New creates a dispatcher projecting onto variants of table. current is
// the version clientbound messages are translated to.
func New(table *schema.Table, current int32) *Dispatcher {
	return &Dispatcher{
		table:    table,
		current:  current,
		handlers: make(map[key][]entry),
		partials: make(map[key][]Partial),
	}
}

// Handle registers h for every case of kind and every peer version.
func (d *Dispatcher) Handle(dir schema.Direction, kind schema.Kind, h Handler) {
	d.add(dir, kind, entry{h: h})
}

// HandleCase registers h for one polymorphic case of kind. It takes
// precedence over a handler registered for the whole kind.
func (d *Dispatcher) HandleCase(dir schema.Direction, kind schema.Kind, caseKey string, h Handler) {
	d.add(dir, kind, entry{caseKey: caseKey, h: h})
}

// HandleVersions registers h for kind when the legacy peer runs a version
// in [min, max]. A max of 0 leaves the range open.
func (d *Dispatcher) HandleVersions(dir schema.Direction, kind schema.Kind, minVersion, maxVersion int32, h Handler) {
	d.add(dir, kind, entry{min: minVersion, max: maxVersion, h: h})
}

func (d *Dispatcher) add(dir schema.Direction, kind schema.Kind, e entry) {
	k := key{dir: dir, kind: kind}
	d.handlers[k] = append(d.handlers[k], e)
}

// HandlePartial registers p to run before the handler of kind.
func (d *Dispatcher) HandlePartial(dir schema.Direction, kind schema.Kind, p Partial) {
	k := key{dir: dir, kind: kind}
	d.partials[k] = append(d.partials[k], p)
}

// Has reports whether kind has an explicit handler in dir.
func (d *Dispatcher) Has(dir schema.Direction, kind schema.Kind) bool {
	return len(d.handlers[key{dir: dir, kind: kind}]) > 0
}

func (d *Dispatcher) lookup(dir schema.Direction, kind schema.Kind, caseKey string, version int32) Handler {
	entries := d.handlers[key{dir: dir, kind: kind}]
	if caseKey != "" {
		for _, e := range entries {
			if e.caseKey == caseKey && e.covers(version) {
				return e.h
			}
		}
	}
	for _, e := range entries {
		if e.caseKey == "" && e.covers(version) {
			return e.h
		}
	}
	return nil
}

// Dispatch runs partial handlers, then the most specific handler, falling
// back to projecting msg onto the target variant of its kind.
func (d *Dispatcher) Dispatch(dir schema.Direction, msg *schema.Message, ctx *session.Context) ([]*schema.Message, error) {
	for _, p := range d.partials[key{dir: dir, kind: msg.Kind}] {
		p(msg, ctx)
	}
	version, negotiated := ctx.Version()
	if h := d.lookup(dir, msg.Kind, msg.Case(), version); h != nil {
		return h(msg, ctx)
	}
	target := d.current
	if dir == schema.Serverbound {
		if !negotiated {
			return nil, fmt.Errorf("handler: %s before version negotiation", msg.Kind)
		}
		target = version
	}
	projected, err := d.Project(msg, target)
	if err != nil {
		return nil, err
	}
	return []*schema.Message{projected}, nil
}

// Project copies the fields of msg that the variant of its kind at version
// declares. Fields the variant lacks are dropped and fields msg lacks stay
// absent.
func (d *Dispatcher) Project(msg *schema.Message, version int32) (*schema.Message, error) {
	variant, err := d.table.Lookup(msg.Kind, version)
	if err != nil {
		return nil, err
	}
	s := variant.Schema
	fields := s.Fields
	out := schema.NewMessage(msg.Kind)
	if s.Poly != nil {
		disc := msg.String(s.Poly.Tag.Name)
		caseKey, fs, ok := s.Select(disc)
		if !ok {
			return nil, &schema.Error{Class: schema.ErrUnsupportedVariant, Kind: msg.Kind, Version: version, Field: s.Poly.Tag.Name, Discriminant: disc}
		}
		fields = fs
		out.WithCase(caseKey)
	}
	for _, f := range fields {
		if v, ok := msg.Get(f.Name); ok {
			out.Set(f.Name, v)
		}
	}
	return out, nil
}

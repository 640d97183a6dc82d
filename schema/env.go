package schema

import (
	"github.com/Mmx233/ProtoBridge/datafix"
	"github.com/Mmx233/ProtoBridge/session"
	"github.com/rs/zerolog"
)

// Env carries what a decode or encode needs besides the bytes.
//
// Version is the protocol version of the frames handled. Target is the
// version decoded values are translated to, and encoded values are
// translated from. When both are equal no registry remapping or migration
// takes place.
type Env struct {
	Session *session.Context
	Bridge  datafix.Bridge
	Version int32
	Target  int32
	// DataVersion maps a protocol version to the data version of its
	// structured blobs.
	DataVersion func(protocol int32) (int32, bool)
	// Origins, when set, makes encoding a decoded blob reproduce its wire bytes.
	Origins *Origins
	Logger  zerolog.Logger
}

func (e *Env) translating() bool {
	return e.Version != e.Target
}

func (e *Env) remap(path, namespace string, id int32, toCurrent bool) (int32, error) {
	if !e.translating() {
		return id, nil
	}
	fail := func(reason string) error {
		return &Error{Class: ErrSchemaViolation, Field: path, Namespace: namespace, ID: id, Reason: reason}
	}
	if e.Session == nil {
		return 0, fail("no session")
	}
	reg, ok := e.Session.Registry(namespace)
	if !ok {
		return 0, fail("registry not resolved")
	}
	var out int32
	if toCurrent {
		out, ok = reg.ToCurrent(id)
	} else {
		out, ok = reg.ToLegacy(id)
	}
	if !ok {
		return 0, fail("unmapped id")
	}
	return out, nil
}

// migrate moves a blob between the data versions of Version and Target.
// forward is true on decode. A blob decoded through the same Env encodes
// back to its original bytes.
func (e *Env) migrate(blob []byte, key string, forward bool) ([]byte, error) {
	if !e.translating() {
		return blob, nil
	}
	if !forward {
		if wire, ok := e.Origins.lookup(key, blob); ok {
			return wire, nil
		}
	}
	fail := func(reason string, cause error) error {
		return &Error{Class: ErrMigrationFailure, Reason: reason, Cause: cause}
	}
	if e.Bridge == nil || e.DataVersion == nil {
		return nil, fail("no datafix bridge", nil)
	}
	from, ok := e.DataVersion(e.Version)
	if !ok {
		return nil, fail("no data version for protocol", nil)
	}
	to, ok := e.DataVersion(e.Target)
	if !ok {
		return nil, fail("no data version for protocol", nil)
	}
	if !forward {
		from, to = to, from
	}
	out, err := e.Bridge.Migrate(blob, from, to, key)
	if err != nil {
		return nil, fail("key "+key, err)
	}
	if forward {
		e.Origins.remember(key, out, blob)
	}
	return out, nil
}

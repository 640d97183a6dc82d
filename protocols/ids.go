package protocols

import (
	"fmt"

	"github.com/Mmx233/ProtoBridge/schema"
)

type dirVersion struct {
	dir     schema.Direction
	version int32
}

// IDTable maps packet ids to kinds per direction and version.
type IDTable struct {
	kinds map[dirVersion]map[int32]schema.Kind
	ids   map[dirVersion]map[schema.Kind]int32
}

func newIDTable() *IDTable {
	return &IDTable{
		kinds: make(map[dirVersion]map[int32]schema.Kind),
		ids:   make(map[dirVersion]map[schema.Kind]int32),
	}
}

// add assigns id to kind for every known version in [minVersion, maxVersion].
func (t *IDTable) add(dir schema.Direction, kind schema.Kind, id, minVersion, maxVersion int32) error {
	for _, v := range versions {
		if v.Protocol < minVersion || (maxVersion != 0 && v.Protocol > maxVersion) {
			continue
		}
		k := dirVersion{dir: dir, version: v.Protocol}
		if t.kinds[k] == nil {
			t.kinds[k] = make(map[int32]schema.Kind)
			t.ids[k] = make(map[schema.Kind]int32)
		}
		if other, ok := t.kinds[k][id]; ok {
			return fmt.Errorf("protocols: %s id 0x%02x of %s in %s already belongs to %s", dir, id, kind, v.Name, other)
		}
		if _, ok := t.ids[k][kind]; ok {
			return fmt.Errorf("protocols: %s %s has two ids in %s", dir, kind, v.Name)
		}
		t.kinds[k][id] = kind
		t.ids[k][kind] = id
	}
	return nil
}

func (t *IDTable) Kind(dir schema.Direction, version, id int32) (schema.Kind, bool) {
	kind, ok := t.kinds[dirVersion{dir: dir, version: version}][id]
	return kind, ok
}

func (t *IDTable) ID(dir schema.Direction, version int32, kind schema.Kind) (int32, bool) {
	id, ok := t.ids[dirVersion{dir: dir, version: version}][kind]
	return id, ok
}

// Kinds lists the kinds mapped for a direction and version.
func (t *IDTable) Kinds(dir schema.Direction, version int32) map[schema.Kind]int32 {
	out := make(map[schema.Kind]int32)
	for kind, id := range t.ids[dirVersion{dir: dir, version: version}] {
		out[kind] = id
	}
	return out
}

// DisconnectPacketID is the clientbound play disconnect of Current.
const DisconnectPacketID int32 = 0x17

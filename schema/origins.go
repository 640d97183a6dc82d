package schema

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru"
)

const DefaultOriginsSize = 64

// Origins remembers the wire bytes each migrated blob was decoded from.
// Encoding an unchanged blob back toward the same peer writes those bytes
// instead of asking the bridge for a downgrade. Safe for concurrent use.
type Origins struct {
	cache *lru.Cache
}

func NewOrigins(size int) *Origins {
	if size <= 0 {
		size = DefaultOriginsSize
	}
	cache, _ := lru.New(size)
	return &Origins{cache: cache}
}

func originKey(key string, migrated []byte) string {
	return key + "\x00" + string(migrated)
}

func (o *Origins) remember(key string, migrated, wire []byte) {
	if o == nil {
		return
	}
	o.cache.Add(originKey(key, migrated), bytes.Clone(wire))
}

func (o *Origins) lookup(key string, migrated []byte) ([]byte, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.cache.Get(originKey(key, migrated))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Len returns the number of remembered blobs.
func (o *Origins) Len() int {
	if o == nil {
		return 0
	}
	return o.cache.Len()
}

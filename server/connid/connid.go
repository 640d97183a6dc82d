// Package connid names proxied sessions.
package connid

import (
	"sync/atomic"

	"github.com/google/uuid"
)

var counter atomic.Uint64

// ID identifies one session. Seq orders sessions within a process, UUID is
// unique across restarts and shows up in logs and on the admin endpoint.
type ID struct {
	Seq  uint64
	UUID uuid.UUID
}

// Generate generates a unique session ID
func Generate() ID {
	return ID{Seq: counter.Add(1), UUID: uuid.New()}
}

func (id ID) String() string {
	return id.UUID.String()
}

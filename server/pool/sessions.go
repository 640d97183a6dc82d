package pool

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mmx233/ProtoBridge/server/connid"
)

type Phase int32

const (
	PhaseHandshake Phase = iota
	PhaseStatus
	PhaseLogin
	PhasePlay
)

func (p Phase) String() string {
	switch p {
	case PhaseHandshake:
		return "handshake"
	case PhaseStatus:
		return "status"
	case PhaseLogin:
		return "login"
	case PhasePlay:
		return "play"
	default:
		return "unknown"
	}
}

// Session is one proxied client connection.
type Session struct {
	ID              connid.ID
	Remote          string
	Upstream        string
	UpstreamVersion int32
	StartedAt       time.Time

	ClientVersion atomic.Int32
	Translating   atomic.Bool
	FramesIn      atomic.Uint64 // clientbound
	FramesOut     atomic.Uint64 // serverbound

	phase    atomic.Int32
	username atomic.Pointer[string]
	close    func()
}

func NewSession(remote, upstream string, upstreamVersion int32, closeFn func()) *Session {
	return &Session{
		ID:              connid.Generate(),
		Remote:          remote,
		Upstream:        upstream,
		UpstreamVersion: upstreamVersion,
		StartedAt:       time.Now(),
		close:           closeFn,
	}
}

func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Session) SetPhase(p Phase) {
	s.phase.Store(int32(p))
}

func (s *Session) Username() string {
	if name := s.username.Load(); name != nil {
		return *name
	}
	return ""
}

func (s *Session) SetUsername(name string) {
	s.username.Store(&name)
}

// SessionInfo is the admin view of a session.
type SessionInfo struct {
	ID              string    `json:"id"`
	Remote          string    `json:"remote"`
	Upstream        string    `json:"upstream"`
	Username        string    `json:"username,omitempty"`
	Phase           string    `json:"phase"`
	ClientVersion   int32     `json:"client_version"`
	UpstreamVersion int32     `json:"upstream_version"`
	Translating     bool      `json:"translating"`
	FramesIn        uint64    `json:"frames_in"`
	FramesOut       uint64    `json:"frames_out"`
	StartedAt       time.Time `json:"started_at"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:              s.ID.String(),
		Remote:          s.Remote,
		Upstream:        s.Upstream,
		Username:        s.Username(),
		Phase:           s.Phase().String(),
		ClientVersion:   s.ClientVersion.Load(),
		UpstreamVersion: s.UpstreamVersion,
		Translating:     s.Translating.Load(),
		FramesIn:        s.FramesIn.Load(),
		FramesOut:       s.FramesOut.Load(),
		StartedAt:       s.StartedAt,
	}
}

// Sessions is the live session table.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

func (t *Sessions) Add(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID.String()] = s
}

func (t *Sessions) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

func (t *Sessions) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

func (t *Sessions) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Snapshot lists every session, oldest first.
func (t *Sessions) Snapshot() []SessionInfo {
	t.mu.RLock()
	list := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		list = append(list, s)
	}
	t.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID.Seq < list[j].ID.Seq })
	out := make([]SessionInfo, len(list))
	for i, s := range list {
		out[i] = s.Info()
	}
	return out
}

// Kick closes the connections of session id. It reports whether the session existed.
func (t *Sessions) Kick(id string) bool {
	s, ok := t.Get(id)
	if !ok {
		return false
	}
	if s.close != nil {
		s.close()
	}
	return true
}

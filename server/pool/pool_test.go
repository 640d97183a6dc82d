package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain ensures no goroutine leaks across all tests in this package
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestUpstreamPool_New(t *testing.T) {
	p := New([]string{"a:1", "b:1", "a:1"}, NewRoundRobinBalancer(), time.Second, zerolog.Nop())

	list := p.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a:1", list[0].Addr)
	assert.Equal(t, "b:1", list[1].Addr)
	assert.Equal(t, 2, p.HealthyCount())

	_, ok := p.Get("b:1")
	assert.True(t, ok)
	_, ok = p.Get("c:1")
	assert.False(t, ok)
}

func TestUpstreamPool_Empty(t *testing.T) {
	p := New(nil, NewRoundRobinBalancer(), time.Second, zerolog.Nop())
	_, err := p.Select()
	assert.ErrorIs(t, err, ErrNoUpstreams)
}

func TestUpstreamPool_MarkUnhealthyAndRecover(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	p := New([]string{"a:1", "b:1"}, NewRoundRobinBalancer(), 10*time.Second, zerolog.Nop())
	p.now = clock.Now

	p.MarkUnhealthy("a:1")
	assert.Equal(t, 1, p.HealthyCount())
	for i := 0; i < 4; i++ {
		u, err := p.Select()
		require.NoError(t, err)
		assert.Equal(t, "b:1", u.Addr)
	}

	p.MarkUnhealthy("b:1")
	_, err := p.Select()
	assert.ErrorIs(t, err, ErrNoHealthyUpstreams)

	clock.Advance(10 * time.Second)
	_, err = p.Select()
	require.NoError(t, err)
	assert.Equal(t, 2, p.HealthyCount())

	a, _ := p.Get("a:1")
	assert.Equal(t, uint64(1), a.FailedDials.Load())
}

func TestUpstream_Acquire(t *testing.T) {
	u := &Upstream{Addr: "a:1"}
	release := u.Acquire()
	u.Acquire()
	assert.Equal(t, int64(2), u.ActiveSessions.Load())

	release()
	release()
	assert.Equal(t, int64(1), u.ActiveSessions.Load())
	assert.Equal(t, uint64(2), u.TotalSessions.Load())
}

func TestUpstreamPool_LeastSessionsSpreads(t *testing.T) {
	p := New([]string{"a:1", "b:1"}, NewLeastSessionsBalancer(), time.Second, zerolog.Nop())

	first, err := p.Select()
	require.NoError(t, err)
	release := first.Acquire()

	second, err := p.Select()
	require.NoError(t, err)
	assert.NotEqual(t, first.Addr, second.Addr)

	release()
	third, err := p.Select()
	require.NoError(t, err)
	assert.Equal(t, "a:1", third.Addr)
}

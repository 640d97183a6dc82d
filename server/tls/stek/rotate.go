// Package stek rotates the TLS session ticket encryption keys of the QUIC
// listener so resumed sessions survive key changes.
package stek

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Rotator keeps overlap session ticket keys and replaces the oldest one
// every interval. The first key encrypts new tickets, all of them decrypt.
type Rotator struct {
	keys     atomic.Pointer[[][32]byte]
	interval time.Duration
	overlap  uint8
	logger   zerolog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewRotator(interval time.Duration, overlap uint8, logger zerolog.Logger) (*Rotator, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("rotation interval must be positive, got %v", interval)
	}
	if overlap < 1 {
		return nil, fmt.Errorf("overlap must be at least 1, got %d", overlap)
	}

	r := &Rotator{
		interval: interval,
		overlap:  overlap,
		logger:   logger.With().Str("com", "stek").Logger(),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	initial := make([][32]byte, overlap)
	for i := range initial {
		key, err := generateKey()
		if err != nil {
			return nil, fmt.Errorf("generate initial key %d: %w", i, err)
		}
		initial[i] = key
	}
	r.keys.Store(&initial)
	return r, nil
}

func generateKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("read random: %w", err)
	}
	return key, nil
}

// Keys returns the current key set, newest first.
func (r *Rotator) Keys() [][32]byte {
	return *r.keys.Load()
}

func (r *Rotator) rotate() error {
	key, err := generateKey()
	if err != nil {
		return err
	}
	current := r.Keys()

	n := min(len(current)+1, int(r.overlap))
	next := make([][32]byte, n)
	next[0] = key
	copy(next[1:], current)
	r.keys.Store(&next)

	r.logger.Debug().Int("total_keys", n).Msg("rotated session ticket keys")
	return nil
}

// Wrap installs the rotating keys on base. Every handshake gets a clone of
// base carrying the key set current at that moment.
func (r *Rotator) Wrap(base *tls.Config) *tls.Config {
	base.SetSessionTicketKeys(r.Keys())
	base.GetConfigForClient = func(*tls.ClientHelloInfo) (*tls.Config, error) {
		conf := base.Clone()
		conf.GetConfigForClient = nil
		conf.SetSessionTicketKeys(r.Keys())
		return conf, nil
	}
	return base
}

// Start rotates keys in the background until ctx ends or Stop is called.
func (r *Rotator) Start(ctx context.Context) {
	r.logger.Info().
		Dur("interval", r.interval).
		Uint8("overlap", r.overlap).
		Msg("session ticket key rotation enabled")

	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run(ctx)
}

func (r *Rotator) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.rotate(); err != nil {
				r.logger.Error().Err(err).Msg("rotate session ticket keys failed")
			}
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

// Stop ends rotation and waits for the background goroutine. It is
// idempotent and safe to call when Start never ran.
func (r *Rotator) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	if r.started.Load() {
		<-r.done
	}
}

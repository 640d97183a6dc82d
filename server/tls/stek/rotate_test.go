package stek

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRotator(t *testing.T) {
	r, err := NewRotator(time.Hour, 3, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	keys := r.Keys()
	if len(keys) != 3 {
		t.Fatalf("Expected 3 initial keys, got %d", len(keys))
	}
	if keys[0] == keys[1] || keys[1] == keys[2] {
		t.Error("Expected distinct initial keys")
	}
}

func TestNewRotator_InvalidParameters(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		overlap  uint8
		wantErr  bool
	}{
		{"zero interval", 0, 2, true},
		{"negative interval", -time.Hour, 2, true},
		{"zero overlap", time.Hour, 0, true},
		{"valid parameters", time.Hour, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRotator(tt.interval, tt.overlap, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRotator() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRotator_Rotation(t *testing.T) {
	r, err := NewRotator(time.Hour, 3, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	firstKey := r.Keys()[0]

	if err := r.rotate(); err != nil {
		t.Fatalf("rotate() failed: %v", err)
	}

	keys := r.Keys()
	if len(keys) != 3 {
		t.Errorf("Expected 3 keys after rotation, got %d", len(keys))
	}
	if keys[0] == firstKey {
		t.Error("Expected first key to change after rotation")
	}
	if keys[1] != firstKey {
		t.Error("Expected second key to be the old first key")
	}
}

func TestRotator_OverlapLimit(t *testing.T) {
	r, err := NewRotator(time.Hour, 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := r.rotate(); err != nil {
			t.Fatalf("rotate() failed on iteration %d: %v", i, err)
		}
		if n := len(r.Keys()); n != 2 {
			t.Errorf("Expected 2 keys, got %d after %d rotations", n, i+1)
		}
	}
}

func TestRotator_Wrap(t *testing.T) {
	r, err := NewRotator(time.Hour, 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	base := &tls.Config{NextProtos: []string{"protobridge"}}
	conf := r.Wrap(base)
	if conf.GetConfigForClient == nil {
		t.Fatal("Expected GetConfigForClient to be installed")
	}

	_ = r.rotate()
	perConn, err := conf.GetConfigForClient(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatalf("GetConfigForClient failed: %v", err)
	}
	if perConn == conf {
		t.Error("Expected a clone per handshake")
	}
	if perConn.GetConfigForClient != nil {
		t.Error("Expected the clone not to recurse")
	}
	if len(perConn.NextProtos) != 1 || perConn.NextProtos[0] != "protobridge" {
		t.Errorf("Expected base settings to be kept, got %v", perConn.NextProtos)
	}
}

func TestRotator_StartRotates(t *testing.T) {
	r, err := NewRotator(20*time.Millisecond, 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	first := r.Keys()[0]

	r.Start(context.Background())
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for r.Keys()[0] == first {
		if time.Now().After(deadline) {
			t.Fatal("Expected keys to rotate")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

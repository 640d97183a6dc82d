// Package datafix migrates structured blobs between data versions.
package datafix

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// json sorts map keys, which keeps migrations deterministic.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrUnknownKey = errors.New("datafix: unknown schema key")
	ErrDowngrade  = errors.New("datafix: no migration toward older data versions")
	ErrDocument   = errors.New("datafix: blob is not a document")
)

// Bridge migrates a blob of the given schema key between two data versions.
// Implementations must be deterministic and return blob unchanged when
// from == to.
type Bridge interface {
	Migrate(blob []byte, from, to int32, key string) ([]byte, error)
}

// Document is the decoded form of a blob that fixes operate on.
type Document = map[string]any

// Fix transforms a document into the shape of DataVersion.
type Fix struct {
	Key         string
	DataVersion int32
	Name        string
	Apply       func(doc Document) error
}

// Fixer is a Bridge over JSON documents. Fixes are grouped by key and
// applied in data version order.
type Fixer struct {
	mu    sync.RWMutex
	fixes map[string][]Fix
}

func NewFixer() *Fixer {
	return &Fixer{fixes: make(map[string][]Fix)}
}

// Declare makes key known without registering any fix for it.
func (f *Fixer) Declare(key string) *Fixer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fixes[key]; !ok {
		f.fixes[key] = nil
	}
	return f
}

// Register adds fixes. Two fixes of one key must not share a data version.
func (f *Fixer) Register(fixes ...Fix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fix := range fixes {
		if fix.Key == "" || fix.Apply == nil {
			return fmt.Errorf("datafix: fix %q is incomplete", fix.Name)
		}
		for _, existing := range f.fixes[fix.Key] {
			if existing.DataVersion == fix.DataVersion {
				return fmt.Errorf("datafix: %s already has a fix at data version %d", fix.Key, fix.DataVersion)
			}
		}
		list := append(f.fixes[fix.Key], fix)
		sort.Slice(list, func(i, j int) bool { return list[i].DataVersion < list[j].DataVersion })
		f.fixes[fix.Key] = list
	}
	return nil
}

// Keys lists the known schema keys in sorted order.
func (f *Fixer) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.fixes))
	for k := range f.fixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Migrate applies every fix of key whose data version v satisfies from < v <= to.
// Migrating toward an older data version only succeeds when no fix lies in
// (to, from], in which case the blob is unchanged.
func (f *Fixer) Migrate(blob []byte, from, to int32, key string) ([]byte, error) {
	if from == to {
		return blob, nil
	}
	f.mu.RLock()
	fixes, ok := f.fixes[key]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	lo, hi := from, to
	if to < from {
		lo, hi = to, from
	}
	var pending []Fix
	for _, fix := range fixes {
		if fix.DataVersion > lo && fix.DataVersion <= hi {
			pending = append(pending, fix)
		}
	}
	if len(pending) == 0 {
		return blob, nil
	}
	if to < from {
		return nil, fmt.Errorf("%w: %s %d -> %d crosses %q", ErrDowngrade, key, from, to, pending[len(pending)-1].Name)
	}

	doc, err := decodeDocument(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocument, key, err)
	}
	for _, fix := range pending {
		if err := fix.Apply(doc); err != nil {
			return nil, fmt.Errorf("datafix: %s fix %q at %d: %w", key, fix.Name, fix.DataVersion, err)
		}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("datafix: encode %s: %w", key, err)
	}
	return bytes.TrimSpace(out), nil
}

// decodeDocument keeps numbers as json.Number so integers beyond 2^53
// survive a migration unchanged.
func decodeDocument(blob []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("null document")
	}
	if dec.More() {
		return nil, errors.New("trailing data after document")
	}
	return doc, nil
}

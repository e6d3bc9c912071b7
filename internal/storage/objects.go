package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
)

// Object reference schemes
const (
	SchemeGCS   = "gs"
	SchemeLocal = "local"
)

// ObjectStore stores and loads binary objects addressed by scheme://bucket/key refs.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, key, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	// URI returns the ref Put would return for key.
	URI(key string) string
}

// Ref is a parsed object reference
type Ref struct {
	Scheme string
	Bucket string
	Key    string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s://%s/%s", r.Scheme, r.Bucket, r.Key)
}

// ParseRef splits scheme://bucket/key. Bucket and key must both be non-empty.
func ParseRef(ref string) (Ref, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok || scheme == "" {
		return Ref{}, apperr.Validation("not an object uri: %q", ref)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Ref{}, apperr.Validation("invalid object uri: %q", ref)
	}
	return Ref{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

func parseRefScheme(ref, scheme string) (Ref, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return Ref{}, err
	}
	if r.Scheme != scheme {
		return Ref{}, apperr.Validation("expected %s:// uri, got %q", scheme, ref)
	}
	return r, nil
}

// Mux writes to one default store and reads from whichever store owns a ref's scheme.
type Mux struct {
	def    ObjectStore
	stores map[string]ObjectStore
}

// NewMux returns a Mux writing to stores[defaultScheme].
func NewMux(defaultScheme string, stores map[string]ObjectStore) (*Mux, error) {
	def, ok := stores[defaultScheme]
	if !ok {
		return nil, fmt.Errorf("no object store for scheme %q", defaultScheme)
	}
	return &Mux{def: def, stores: stores}, nil
}

func (m *Mux) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	return m.def.Put(ctx, data, key, contentType)
}

func (m *Mux) URI(key string) string {
	return m.def.URI(key)
}

func (m *Mux) Get(ctx context.Context, ref string) ([]byte, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	store, ok := m.stores[r.Scheme]
	if !ok {
		return nil, apperr.Validation("unsupported object scheme %q", r.Scheme)
	}
	return store.Get(ctx, ref)
}

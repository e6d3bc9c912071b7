package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
)

// BadgerStore is a local object store for deployments without Cloud Storage
// and for caching derived artifacts.
type BadgerStore struct {
	db     *badger.DB
	bucket string
}

// NewBadgerStore opens (or creates) a store at path. An empty path keeps
// everything in memory.
func NewBadgerStore(path, bucket string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db, bucket: bucket}, nil
}

func (s *BadgerStore) URI(key string) string {
	return Ref{Scheme: SchemeLocal, Bucket: s.bucket, Key: key}.String()
}

func (s *BadgerStore) Put(_ context.Context, data []byte, key, _ string) (string, error) {
	ref := Ref{Scheme: SchemeLocal, Bucket: s.bucket, Key: key}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(objectKey(ref), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}
	return ref.String(), nil
}

func (s *BadgerStore) Get(_ context.Context, ref string) ([]byte, error) {
	r, err := parseRefScheme(ref, SchemeLocal)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(r))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.NotFound("object %s", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", ref, err)
	}
	return data, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func objectKey(r Ref) []byte {
	return []byte(r.Bucket + "/" + r.Key)
}

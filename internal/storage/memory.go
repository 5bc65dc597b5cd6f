package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-memdb"
)

const documentsTable = "documents"

type document struct {
	Key  string
	Data []byte
}

// Memory keeps documents in a go-memdb table. It backs tests and local runs
// without an object store.
type Memory struct {
	db *memdb.MemDB
}

func NewMemory() (*Memory, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			documentsTable: {
				Name: documentsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	return &Memory{db: db}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	txn := m.db.Txn(false)
	raw, err := txn.First(documentsTable, "id", key)
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	data := raw.(*document).Data
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	txn := m.db.Txn(true)
	doc := &document{Key: key, Data: append([]byte(nil), data...)}
	if err := txn.Insert(documentsTable, doc); err != nil {
		txn.Abort()
		return fmt.Errorf("failed to insert document %s: %w", key, err)
	}
	txn.Commit()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	txn := m.db.Txn(true)
	if err := txn.Delete(documentsTable, &document{Key: key}); err != nil {
		txn.Abort()
		if errors.Is(err, memdb.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	txn.Commit()
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	txn := m.db.Txn(false)
	it, err := txn.Get(documentsTable, "id_prefix", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents %s: %w", prefix, err)
	}

	var keys []string
	for obj := it.Next(); obj != nil; obj = it.Next() {
		key := obj.(*document).Key
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"cellule/internal/domain/errs"
)

const badgerPrefix = "node:"

// badgerDocs keeps one key per root child in an embedded Badger database.
type badgerDocs struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database at dir. An empty dir keeps data in memory.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return db, nil
}

// NewBadgerStore returns a Store persisted in db. Closing the store closes db.
func NewBadgerStore(db *badger.DB) Store {
	return newLocalStore(&badgerDocs{db: db})
}

func (b *badgerDocs) load(_ context.Context, key string) (any, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Connectivity("load "+key, err)
	}
	return decodeTree(raw)
}

func (b *badgerDocs) save(_ context.Context, key string, doc any) error {
	var raw []byte
	if doc != nil {
		var err error
		if raw, err = json.Marshal(doc); err != nil {
			return err
		}
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if doc == nil {
			return txn.Delete([]byte(badgerPrefix + key))
		}
		return txn.Set([]byte(badgerPrefix+key), raw)
	})
	if err != nil {
		return errs.Connectivity("save "+key, err)
	}
	return nil
}

func (b *badgerDocs) keys(_ context.Context) ([]string, error) {
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, string(it.Item().Key()[len(badgerPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, errs.Connectivity("list keys", err)
	}
	return out, nil
}

func (b *badgerDocs) close() error {
	return b.db.Close()
}

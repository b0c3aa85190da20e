package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func (b *BadgerStore) Apply(key string, resp json.RawMessage, seq int64) (bool, Entry, error) {
	var applied bool
	var out Entry
	err := b.db.Update(func(txn *badger.Txn) error {
		var cur Entry
		item, err := txn.Get([]byte(key))
		if err == nil {
			v, e := item.ValueCopy(nil)
			if e != nil {
				return e
			}
			if cur, e = decodeEntry(v); e != nil {
				return e
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if seq <= cur.LastSeq {
			out = cur
			return nil
		}
		cur = Entry{Response: append(json.RawMessage(nil), resp...), LastSeq: seq}
		val, e := encodeEntry(cur)
		if e != nil {
			return e
		}
		if e = txn.Set([]byte(key), val); e != nil {
			return e
		}
		applied = true
		out = cur
		return nil
	})
	return applied, out, err
}

func (b *BadgerStore) Get(key string) (Entry, bool) {
	var e Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		e, err = decodeEntry(v)
		return err
	})
	if err != nil {
		return Entry{}, false
	}
	return e, true
}

func (b *BadgerStore) Range(fn func(key string, e Entry) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			if err := fn(string(item.KeyCopy(nil)), e); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAll replaces every key with the snapshot contents.
func (b *BadgerStore) LoadAll(all map[string]Entry) {
	_ = b.db.Update(func(txn *badger.Txn) error {
		// collect keys first; deleting while iterating is not allowed
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for k, e := range all {
			val, err := encodeEntry(e)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(k), val); err != nil {
				return err
			}
		}
		return nil
	})
}

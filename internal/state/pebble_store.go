package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	// serializes read-modify-write in Apply
	mu sync.Mutex
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func encodeEntry(e Entry) ([]byte, error) { return json.Marshal(e) }
func decodeEntry(val []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (p *PebbleStore) Apply(key string, resp json.RawMessage, seq int64) (bool, Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := []byte(key)
	var cur Entry
	v, closer, err := p.db.Get(k)
	if err == nil {
		cur, err = decodeEntry(v)
		_ = closer.Close()
		if err != nil {
			return false, Entry{}, err
		}
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return false, Entry{}, err
	}
	if seq <= cur.LastSeq {
		return false, cur, nil
	}
	cur = Entry{Response: append(json.RawMessage(nil), resp...), LastSeq: seq}
	b, err := encodeEntry(cur)
	if err != nil {
		return false, Entry{}, err
	}
	if err := p.db.Set(k, b, pebble.Sync); err != nil {
		return false, Entry{}, err
	}
	return true, cur, nil
}

func (p *PebbleStore) Get(key string) (Entry, bool) {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		return Entry{}, false
	}
	defer closer.Close()
	e, derr := decodeEntry(v)
	if derr != nil {
		return Entry{}, false
	}
	return e, true
}

func (p *PebbleStore) Range(fn func(key string, e Entry) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		e, err := decodeEntry(append([]byte(nil), it.Value()...))
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if err := fn(k, e); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll replaces every key with the snapshot contents in one batch.
func (p *PebbleStore) LoadAll(all map[string]Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	wb := p.db.NewBatch()
	defer wb.Close()
	if it, err := p.db.NewIter(nil); err == nil {
		for it.First(); it.Valid(); it.Next() {
			_ = wb.Delete(append([]byte(nil), it.Key()...), nil)
		}
		_ = it.Close()
	}
	for k, e := range all {
		b, err := encodeEntry(e)
		if err != nil {
			continue
		}
		_ = wb.Set([]byte(k), b, nil)
	}
	_ = wb.Commit(pebble.Sync)
}

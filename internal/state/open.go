package state

import "fmt"

// Open returns the store for backend (memory|pebble|badger) and a close func.
func Open(backend, dir string) (Store, func() error, error) {
	switch backend {
	case "", "memory":
		return NewInMemoryStore(), func() error { return nil }, nil
	case "pebble":
		s, err := NewPebbleStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "badger":
		s, err := NewBadgerStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

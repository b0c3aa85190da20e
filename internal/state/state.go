package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Entry is the stored create response for one key.
type Entry struct {
	Response json.RawMessage `json:"response"`
	LastSeq  int64           `json:"lastSeq"`
}

// Record is one create response as it travels on the response topic and in
// the journal.
type Record struct {
	RunID      string          `json:"runId"`
	OrderIndex int             `json:"orderIndex"`
	Seq        int64           `json:"seq"`
	Response   json.RawMessage `json:"response"`
}

func (r Record) Key() string { return Key(r.RunID, r.OrderIndex) }

// MaxOrderIndex bounds the order index of a stored response. Responses sizes
// its result by the largest index, so keys above it are never stored.
const MaxOrderIndex = 1 << 20

var ErrBadRecord = errors.New("state: record without run id or with order index out of range")

// Validate rejects records that cannot be keyed into a run's response list.
func (r Record) Validate() error {
	if r.RunID == "" || r.OrderIndex < 0 || r.OrderIndex > MaxOrderIndex {
		return fmt.Errorf("%w: run=%q index=%d", ErrBadRecord, r.RunID, r.OrderIndex)
	}
	return nil
}

// Key is "run#orderIndex".
func Key(runID string, orderIndex int) string {
	return runID + "#" + strconv.Itoa(orderIndex)
}

// ParseKey splits a key built by Key. Indices above MaxOrderIndex are rejected.
func ParseKey(key string) (runID string, orderIndex int, ok bool) {
	i := strings.LastIndexByte(key, '#')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 0 || n > MaxOrderIndex {
		return "", 0, false
	}
	return key[:i], n, true
}

// Store abstracts the response backend. Apply replaces the stored response
// only when seq is newer than the last applied one.
type Store interface {
	Apply(key string, resp json.RawMessage, seq int64) (applied bool, cur Entry, err error)
	Get(key string) (Entry, bool)
	Range(fn func(key string, e Entry) error) error
	LoadAll(all map[string]Entry)
}

// Responses returns the stored responses of a run ordered by order index.
// Missing positions are nil so every response stays at its creation index.
func Responses(st Store, runID string) ([]json.RawMessage, error) {
	byIndex := map[int]json.RawMessage{}
	maxIdx := -1
	err := st.Range(func(key string, e Entry) error {
		run, idx, ok := ParseKey(key)
		if !ok || run != runID {
			return nil
		}
		byIndex[idx] = e.Response
		if idx > maxIdx {
			maxIdx = idx
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("range responses: %w", err)
	}
	out := make([]json.RawMessage, maxIdx+1)
	for i, r := range byIndex {
		out[i] = r
	}
	return out, nil
}

// Runs lists the distinct run ids present in the store, sorted.
func Runs(st Store) ([]string, error) {
	seen := map[string]bool{}
	err := st.Range(func(key string, _ Entry) error {
		if run, _, ok := ParseKey(key); ok {
			seen[run] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

// InMemoryStore is a simple thread-safe map store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]Entry)}
}

// LoadAll replaces the store contents with the provided snapshot.
func (s *InMemoryStore) LoadAll(all map[string]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]Entry, len(all))
	for k, v := range all {
		s.data[k] = v
	}
}

func (s *InMemoryStore) Apply(key string, resp json.RawMessage, seq int64) (bool, Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.data[key]
	if seq <= cur.LastSeq {
		return false, cur, nil
	}
	// gaps are allowed; the newest response wins
	cur = Entry{Response: append(json.RawMessage(nil), resp...), LastSeq: seq}
	s.data[key] = cur
	return true, cur, nil
}

func (s *InMemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e, ok
}

func (s *InMemoryStore) Range(fn func(key string, e Entry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, v); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileJournal appends records as JSON lines. Its offset is the number of
// lines written so far, which is what manifests record.
type FileJournal struct {
	mu     sync.Mutex
	path   string
	offset int64
}

// OpenFileJournal opens or creates the journal and counts existing lines.
func OpenFileJournal(path string) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	j := &FileJournal{path: path}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 16<<20)
	for s.Scan() {
		j.offset++
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return j, nil
}

func (j *FileJournal) Path() string { return j.path }

func (j *FileJournal) Offset() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.offset
}

// Append writes r and returns the journal offset after the write.
func (j *FileJournal) Append(r Record) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return j.offset, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&r); err != nil {
		return j.offset, fmt.Errorf("encode: %w", err)
	}
	j.offset++
	return j.offset, nil
}

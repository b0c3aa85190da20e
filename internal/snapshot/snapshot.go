package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bosim/internal/state"
)

const FileName = "responses.json"

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st state.Store) (int, error)
}

// NewID names a snapshot by UTC time plus a random suffix, so two collectors
// snapshotting in the same second never share a directory.
func NewID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

// Path is where the snapshot with the given id lives.
func (f *FilesystemSnapshotter) Path(snapshotID string) string {
	return filepath.Join(f.baseDir, snapshotID, FileName)
}

// WriteSnapshot dumps every entry and returns how many were written. The file
// is written to a temp name and renamed so readers never see a partial dump.
func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st state.Store) (int, error) {
	dir := filepath.Join(f.baseDir, snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	dump := make(map[string]state.Entry)
	if err := st.Range(func(key string, e state.Entry) error {
		dump[key] = e
		return nil
	}); err != nil {
		return 0, err
	}

	tmp := f.Path(snapshotID) + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		out.Close()
		return 0, fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, f.Path(snapshotID)); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	return len(dump), nil
}

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"bosim/internal/manifest"
	"bosim/internal/metrics"
	"bosim/internal/restore"
	"bosim/internal/snapshot"
	"bosim/internal/state"
)

func newCollector(t *testing.T, dir string) *collector {
	t.Helper()
	j, err := state.OpenFileJournal(filepath.Join(dir, "journal.jsonl"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	return &collector{
		store:   state.NewInMemoryStore(),
		journal: j,
		snap:    snapshot.NewFilesystemSnapshotter(dir),
		pub:     manifest.NewFileManifest(dir),
		metrics: metrics.NewRegistry(),
		log:     zap.NewNop(),
	}
}

func TestCollector_ProcessAndCheckpoint(t *testing.T) {
	dir := t.TempDir()
	c := newCollector(t, dir)

	for _, v := range []string{
		`{"runId":"r","orderIndex":0,"seq":1,"response":{"data":{"id":1}}}`,
		`{"runId":"r","orderIndex":0,"seq":1,"response":{"data":{"id":1}}}`,
		`{"runId":"r","orderIndex":1,"response":{"data":{"id":2}}}`,
	} {
		if err := c.process([]byte(v)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := c.process([]byte(`{"orderIndex":0}`)); err == nil {
		t.Fatalf("record without run id must be rejected")
	}
	if err := c.process([]byte(`{"runId":"r","orderIndex":2000000000,"seq":1,"response":{}}`)); err == nil {
		t.Fatalf("record with an out-of-range order index must be rejected")
	}
	if err := c.process([]byte(`nope`)); err == nil {
		t.Fatalf("malformed record must be rejected")
	}
	if got := testutil.ToFloat64(c.metrics.Applied); got != 2 {
		t.Fatalf("applied=%v want 2", got)
	}
	if got := testutil.ToFloat64(c.metrics.Skipped); got != 1 {
		t.Fatalf("skipped=%v want 1", got)
	}

	if err := c.checkpoint(time.Now()); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	m, err := manifest.NewFileManifest(dir).ReadLatest()
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.LastJournalOffset != 3 || m.Entries != 2 {
		t.Fatalf("unexpected manifest: %+v", m)
	}

	// one more response after the checkpoint is recovered from the journal
	if err := c.process([]byte(`{"runId":"r","orderIndex":2,"seq":1,"response":{"data":{"id":3}}}`)); err != nil {
		t.Fatalf("process: %v", err)
	}
	fresh := state.NewInMemoryStore()
	res, _, err := restore.NewRestorer(fresh, manifest.NewFileManifest(dir), dir, nil).RestoreAndReplay(c.journal.Path())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.Applied != 1 {
		t.Fatalf("replay applied=%d want 1", res.Applied)
	}
	resp, _ := state.Responses(fresh, "r")
	if len(resp) != 3 || resp[2] == nil {
		t.Fatalf("recovered responses: %q", resp)
	}
}

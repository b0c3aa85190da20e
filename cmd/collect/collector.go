package main

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bosim/internal/manifest"
	"bosim/internal/metrics"
	"bosim/internal/snapshot"
	"bosim/internal/state"
)

// collector journals and applies create responses, and periodically
// checkpoints the store as snapshot plus manifest.
type collector struct {
	store   state.Store
	journal *state.FileJournal
	snap    snapshot.Snapshotter
	pub     manifest.Publisher
	metrics *metrics.Registry
	log     *zap.Logger
}

func (c *collector) process(value []byte) error {
	var rec state.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Seq <= 0 {
		rec.Seq = 1
	}
	// write-ahead: the journal is what recovery replays after the last snapshot
	if _, err := c.journal.Append(rec); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	applied, _, err := c.store.Apply(rec.Key(), rec.Response, rec.Seq)
	if err != nil {
		return fmt.Errorf("apply %s: %w", rec.Key(), err)
	}
	if applied {
		c.metrics.Applied.Inc()
	} else {
		c.metrics.Skipped.Inc()
	}
	c.log.Debug("response collected", zap.String("key", rec.Key()), zap.Int64("seq", rec.Seq), zap.Bool("applied", applied))
	return nil
}

func (c *collector) checkpoint(now time.Time) error {
	id := snapshot.NewID(now)
	offset := c.journal.Offset()
	n, err := c.snap.WriteSnapshot(id, c.store)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if c.pub != nil {
		if err := c.pub.PublishLatest(id, offset, n); err != nil {
			return fmt.Errorf("publish manifest: %w", err)
		}
	}
	c.metrics.LastManifestAgeSec.Set(0)
	c.log.Info("snapshot and manifest published", zap.String("snapshot", id), zap.Int("entries", n), zap.Int64("journal_offset", offset))
	return nil
}

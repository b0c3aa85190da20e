package restore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bosim/internal/manifest"
	"bosim/internal/snapshot"
	"bosim/internal/state"
)

type Restorer struct {
	store           state.Store
	manifests       manifest.Reader
	snapshotBaseDir string
	log             *zap.Logger
}

func NewRestorer(st state.Store, mr manifest.Reader, snapshotBaseDir string, log *zap.Logger) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{
		store:           st,
		manifests:       mr,
		snapshotBaseDir: snapshotBaseDir,
		log:             log,
	}
}

// Result counts what a replay did. Offset-skipped records are not counted
// in Skipped.
type Result struct {
	Applied    int
	Skipped    int
	Bytes      int64
	LastOffset int64
	Error      error
}

func (r *Result) apply(st state.Store, rec state.Record) error {
	if rec.Validate() != nil {
		r.Skipped++
		return nil
	}
	ok, _, err := st.Apply(rec.Key(), rec.Response, rec.Seq)
	if err != nil {
		return err
	}
	if ok {
		r.Applied++
	} else {
		r.Skipped++
	}
	return nil
}

// RestoreFromSnapshot loads the snapshot into the store. A missing snapshot
// is not an error: the store is left as is and replay starts from scratch.
func (r *Restorer) RestoreFromSnapshot(snapshotID string) (int, error) {
	if snapshotID == "" {
		return 0, nil
	}
	path := snapshot.NewFilesystemSnapshotter(r.snapshotBaseDir).Path(snapshotID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.log.Warn("snapshot not found, skipping", zap.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	var dump map[string]state.Entry
	if err := json.Unmarshal(data, &dump); err != nil {
		return 0, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	r.store.LoadAll(dump)
	r.log.Info("snapshot loaded", zap.String("snapshot", snapshotID), zap.Int("keys", len(dump)))
	return len(dump), nil
}

// ReplayJournal applies journal lines after fromOffset (1-based line count).
func (r *Restorer) ReplayJournal(path string, fromOffset int64) Result {
	file, err := os.Open(path)
	if err != nil {
		return Result{Error: fmt.Errorf("open journal: %w", err)}
	}
	defer file.Close()
	return r.replayLines(file, fromOffset)
}

func (r *Restorer) replayLines(in io.Reader, fromOffset int64) Result {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	var res Result
	lineNum := int64(0)
	for scanner.Scan() {
		lineNum++
		res.LastOffset = lineNum
		if lineNum <= fromOffset {
			continue
		}
		line := scanner.Bytes()
		res.Bytes += int64(len(line))
		var rec state.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			res.Error = fmt.Errorf("unmarshal line %d: %w", lineNum, err)
			return res
		}
		if err := res.apply(r.store, rec); err != nil {
			res.Error = fmt.Errorf("apply line %d: %w", lineNum, err)
			return res
		}
	}
	if err := scanner.Err(); err != nil {
		res.Error = fmt.Errorf("scan journal: %w", err)
	}
	return res
}

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReplayKafka consumes records from partition 0 of the response topic.
// fromOffset is interpreted as a message count, like the journal offset.
func (r *Restorer) ReplayKafka(brokers []string, topic string, fromOffset int64) Result {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	return r.ReplayFrom(rd, fromOffset, 20*time.Second)
}

// ReplayFrom drains rd until it stays idle for the whole idle window.
func (r *Restorer) ReplayFrom(rd kafkaMessageReader, fromOffset int64, idle time.Duration) Result {
	defer rd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), idle)
	defer cancel()

	var res Result
	idx := int64(0)
	for {
		m, err := rd.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			res.Error = fmt.Errorf("read kafka: %w", err)
			return res
		}
		idx++
		res.LastOffset = idx
		if idx <= fromOffset {
			continue
		}
		res.Bytes += int64(len(m.Value))
		var rec state.Record
		if err := json.Unmarshal(m.Value, &rec); err != nil {
			res.Error = fmt.Errorf("unmarshal record: %w", err)
			return res
		}
		if err := res.apply(r.store, rec); err != nil {
			res.Error = fmt.Errorf("apply: %w", err)
			return res
		}
	}
	return res
}

// RestoreAndReplay loads the latest snapshot, then replays the journal past
// the offset the manifest recorded.
func (r *Restorer) RestoreAndReplay(journalPath string) (Result, manifest.Manifest, error) {
	m, err := r.manifests.ReadLatest()
	switch {
	case errors.Is(err, manifest.ErrNoManifest):
		r.log.Info("no manifest, replaying journal from the start")
	case err != nil:
		return Result{}, manifest.Manifest{}, fmt.Errorf("read manifest: %w", err)
	default:
		if _, err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
			return Result{}, m, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	res := r.ReplayJournal(journalPath, m.LastJournalOffset)
	return res, m, res.Error
}

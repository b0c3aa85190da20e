package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"
)

const fileName = "manifest.latest.json"

// ErrNoManifest is returned when no checkpoint has been published yet.
var ErrNoManifest = errors.New("manifest: none published")

// Manifest names the latest response-store snapshot and how many journal
// records it already contains; replay resumes after LastJournalOffset.
type Manifest struct {
	SnapshotID           string `json:"snapshotId"`
	LastJournalOffset    int64  `json:"lastJournalOffset"`
	Entries              int    `json:"entries"`
	CreatedAtEpochSecond int64  `json:"createdAt"`
}

// Age is how long ago the manifest was published.
func (m Manifest) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(m.CreatedAtEpochSecond, 0))
}

func checkpoint(snapshotID string, offset int64, entries int) ([]byte, error) {
	if snapshotID == "" {
		return nil, errors.New("manifest: empty snapshot id")
	}
	return json.Marshal(Manifest{
		SnapshotID:           snapshotID,
		LastJournalOffset:    offset,
		Entries:              entries,
		CreatedAtEpochSecond: time.Now().UTC().Unix(),
	})
}

func parse(b []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if m.SnapshotID == "" {
		return Manifest{}, ErrNoManifest
	}
	return m, nil
}

type Publisher interface {
	PublishLatest(snapshotID string, lastJournalOffset int64, entries int) error
}

type Reader interface {
	ReadLatest() (Manifest, error)
}

// MultiPublisher fans a checkpoint out in order and stops at the first failure.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishLatest(snapshotID string, lastJournalOffset int64, entries int) error {
	for i, p := range m {
		if err := p.PublishLatest(snapshotID, lastJournalOffset, entries); err != nil {
			return fmt.Errorf("publisher %d: %w", i, err)
		}
	}
	return nil
}

// FileManifest keeps the checkpoint next to the snapshots it points at.
type FileManifest struct {
	dir string
}

func NewFileManifest(dir string) *FileManifest { return &FileManifest{dir: dir} }

func (f *FileManifest) path() string { return filepath.Join(f.dir, fileName) }

func (f *FileManifest) PublishLatest(snapshotID string, lastJournalOffset int64, entries int) error {
	b, err := checkpoint(snapshotID, lastJournalOffset, entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("manifest dir: %w", err)
	}
	tmp := f.path() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp, f.path())
}

func (f *FileManifest) ReadLatest() (Manifest, error) {
	b, err := os.ReadFile(f.path())
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, ErrNoManifest
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return parse(b)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// TopicManifest publishes checkpoints under one key of a compacted topic so
// a fresh collector on another host can find them.
type TopicManifest struct {
	w   messageWriter
	key []byte
}

func NewTopicManifest(brokers []string, topic, key string) *TopicManifest {
	return NewTopicManifestWith(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, key)
}

// NewTopicManifestWith wraps an existing writer; tests pass a fake.
func NewTopicManifestWith(w messageWriter, key string) *TopicManifest {
	return &TopicManifest{w: w, key: []byte(key)}
}

func (t *TopicManifest) PublishLatest(snapshotID string, lastJournalOffset int64, entries int) error {
	b, err := checkpoint(snapshotID, lastJournalOffset, entries)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     t.key,
		Value:   b,
		Headers: []kafka.Header{{Key: "snapshot", Value: []byte(snapshotID)}},
	}
	if err := t.w.WriteMessages(context.Background(), msg); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	return nil
}

// TopicReader finds the newest checkpoint for a key on the manifest topic.
type TopicReader struct {
	open func() messageReader
	key  []byte
	wait time.Duration
}

func NewTopicReader(brokers []string, topic, key string) *TopicReader {
	open := func() messageReader {
		return kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, MinBytes: 1, MaxBytes: 10e6})
	}
	return &TopicReader{open: open, key: []byte(key), wait: 10 * time.Second}
}

// NewTopicReaderWith reads from r instead of dialing brokers.
func NewTopicReaderWith(r messageReader, key string) *TopicReader {
	return &TopicReader{open: func() messageReader { return r }, key: []byte(key), wait: time.Second}
}

// ReadLatest reads the partition from the beginning until it goes quiet and
// returns the last checkpoint seen for the key.
func (t *TopicReader) ReadLatest() (Manifest, error) {
	rd := t.open()
	defer rd.Close()
	ctx, cancel := context.WithTimeout(context.Background(), t.wait)
	defer cancel()

	latest := Manifest{}
	for ctx.Err() == nil {
		msg, err := rd.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return Manifest{}, fmt.Errorf("read manifest topic: %w", err)
		}
		if !bytes.Equal(msg.Key, t.key) {
			continue
		}
		m, err := parse(msg.Value)
		if err != nil {
			return Manifest{}, err
		}
		latest = m
	}
	if latest.SnapshotID == "" {
		return Manifest{}, ErrNoManifest
	}
	return latest, nil
}

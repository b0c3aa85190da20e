package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Request is one API call ready for the external HTTP caller.
type Request struct {
	RunID  string          `json:"runId,omitempty"`
	Stage  string          `json:"stage"`
	Key    string          `json:"key"`
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Body   json.RawMessage `json:"body"`
}

// NewRequest marshals body and builds a request keyed by run, stage and index.
func NewRequest(runID, stage string, index int, method, path string, body any) (Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("marshal body: %w", err)
	}
	return Request{
		RunID:  runID,
		Stage:  stage,
		Key:    Key(runID, stage, index),
		Method: method,
		Path:   path,
		Body:   b,
	}, nil
}

// Key is "run#stage#index". Responses to create calls are stored under the
// same run and index so later stages can line them up again.
func Key(runID, stage string, index int) string {
	return fmt.Sprintf("%s#%s#%d", runID, stage, index)
}

type Writer interface {
	Append(r Request) error
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(r Request) error {
	for _, w := range m.writers {
		if err := w.Append(r); err != nil {
			return err
		}
	}
	return nil
}

// FileWriter appends requests as JSON lines.
type FileWriter struct {
	mu   sync.Mutex
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Append(r Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&r); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// KafkaWriter publishes requests to a topic, keyed so that every request of a
// run lands on the same partition in emission order.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a synchronous writer requiring all in-sync replicas.
func NewKafkaWriter(brokers []string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

func (k *KafkaWriter) Append(r Request) error {
	b, err := json.Marshal(&r)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	key := r.RunID
	if key == "" {
		key = r.Key
	}
	return k.writer.WriteMessages(
		context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: b,
			Headers: []kafka.Header{
				{Key: "method", Value: []byte(r.Method)},
				{Key: "path", Value: []byte(r.Path)},
				{Key: "stage", Value: []byte(r.Stage)},
			},
		},
	)
}

// Close releases the underlying writer when it supports closing.
func (k *KafkaWriter) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

// MemoryWriter keeps requests in memory. Used by dry runs and tests.
type MemoryWriter struct {
	mu       sync.Mutex
	Requests []Request
}

func (m *MemoryWriter) Append(r Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, r)
	return nil
}

package main

import (
	"testing"

	"bosim/internal/outbox"
)

func TestOpenSink(t *testing.T) {
	dir := t.TempDir()
	for _, sink := range []string{"kafka", "both"} {
		if _, _, err := openSink(Config{Sink: sink, OutDir: dir, KafkaBootstrap: " , "}); err == nil {
			t.Fatalf("sink %s without brokers must fail", sink)
		}
	}

	w, closeFn, err := openSink(Config{Sink: "file", OutDir: dir})
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	defer closeFn()
	if _, ok := w.(*outbox.FileWriter); !ok {
		t.Fatalf("want file writer, got %T", w)
	}

	w, closeFn, err = openSink(Config{Sink: "both", OutDir: dir, KafkaBootstrap: "localhost:9092", TopicRequests: "t"})
	if err != nil {
		t.Fatalf("both sinks: %v", err)
	}
	closeFn()
	if _, ok := w.(*outbox.MultiWriter); !ok {
		t.Fatalf("want multi writer, got %T", w)
	}

	if w, _, err := openSink(Config{Sink: "none"}); err != nil || w != nil {
		t.Fatalf("none sink: %v %v", w, err)
	}
}

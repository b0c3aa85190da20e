package config

import (
	"os"
	"path/filepath"
	"testing"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.Backend != "memory" || c.Kafka.TopicRequests != "bosim.requests" || c.Store.SnapshotInterval != 60 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "bosim.yaml")
	yaml := "store:\n  backend: pebble\n  dir: /tmp/x\nkafka:\n  bootstrap: a:9092, b:9092\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOSIM_STORE_BACKEND", "badger")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.Backend != "badger" {
		t.Fatalf("env must override file, got %q", c.Store.Backend)
	}
	if c.Store.Dir != "/tmp/x" {
		t.Fatalf("file value lost: %q", c.Store.Dir)
	}
	if b := c.Brokers(); len(b) != 2 || b[1] != "b:9092" {
		t.Fatalf("brokers: %v", b)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BOSIM_PIPELINE_SINK=kafka\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("BOSIM_PIPELINE_SINK") })

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Pipeline.Sink != "kafka" {
		t.Fatalf("want sink from .env, got %q", c.Pipeline.Sink)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	inTempDir(t)
	if _, err := Load("nope.yaml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

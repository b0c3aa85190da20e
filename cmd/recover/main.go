package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bosim/internal/config"
	"bosim/internal/logging"
	"bosim/internal/manifest"
	"bosim/internal/metrics"
	"bosim/internal/restore"
	"bosim/internal/state"
)

type Config struct {
	KafkaBootstrap string
	ManifestSource string // file|kafka
	JournalSource  string // file|kafka
	TopicSnapshots string
	TopicResponses string
	ManifestKey    string
	SnapshotDir    string
	Journal        string
	StoreBackend   string
	StoreDir       string
	HTTPAddr       string
	PollInterval   int
	Once           bool
	LogEnv         string
	LogLevel       string
}

func main() {
	base, err := config.Load(os.Getenv("BOSIM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	var cfg Config
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", base.Kafka.Bootstrap, "kafka bootstrap")
	flag.StringVar(&cfg.ManifestSource, "manifest-source", "file", "file|kafka")
	flag.StringVar(&cfg.JournalSource, "journal-source", "file", "file|kafka")
	flag.StringVar(&cfg.TopicSnapshots, "topic-snapshots", base.Kafka.TopicSnapshots, "manifest topic")
	flag.StringVar(&cfg.TopicResponses, "topic-responses", base.Kafka.TopicResponses, "response topic")
	flag.StringVar(&cfg.ManifestKey, "manifest-key", base.Kafka.ManifestKey, "manifest record key")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", base.Store.SnapshotDir, "snapshot dir")
	flag.StringVar(&cfg.Journal, "journal", base.Store.Journal, "response journal path for file mode")
	flag.StringVar(&cfg.StoreBackend, "store", base.Store.Backend, "store to restore into: memory|pebble|badger")
	flag.StringVar(&cfg.StoreDir, "store-dir", base.Store.Dir, "store directory")
	flag.StringVar(&cfg.HTTPAddr, "http", base.Metrics.Addr, "http listen for /metrics")
	flag.IntVar(&cfg.PollInterval, "poll", 10, "poll interval seconds for manifest")
	flag.BoolVar(&cfg.Once, "once", false, "run one recovery cycle and exit")
	flag.StringVar(&cfg.LogEnv, "log-env", base.Log.Env, "dev|prod")
	flag.StringVar(&cfg.LogLevel, "log-level", base.Log.Level, "log level")
	flag.Parse()

	logger, err := logging.New(cfg.LogEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("recover failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	mreg := metrics.NewRegistry()
	if !cfg.Once {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	var mReader manifest.Reader = manifest.NewFileManifest(cfg.SnapshotDir)
	if cfg.ManifestSource == "kafka" {
		mReader = manifest.NewTopicReader(config.SplitBrokers(cfg.KafkaBootstrap), cfg.TopicSnapshots, cfg.ManifestKey)
	}

	ticker := time.NewTicker(time.Duration(cfg.PollInterval) * time.Second)
	defer ticker.Stop()
	for {
		if err := cycle(cfg, mReader, mreg, logger); err != nil {
			if cfg.Once {
				return err
			}
			logger.Warn("recovery cycle failed", zap.Error(err))
		}
		if cfg.Once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// cycle restores the store from the latest manifest and replays the journal.
func cycle(cfg Config, mReader manifest.Reader, mreg *metrics.Registry, logger *zap.Logger) error {
	t1 := time.Now()
	st, closeStore, err := state.Open(cfg.StoreBackend, cfg.StoreDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	r := restore.NewRestorer(st, mReader, cfg.SnapshotDir, logger)
	m, err := mReader.ReadLatest()
	switch {
	case errors.Is(err, manifest.ErrNoManifest):
		logger.Info("no checkpoint yet, replaying the whole journal")
	case err != nil:
		return fmt.Errorf("read manifest: %w", err)
	default:
		if _, err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
	}

	var res restore.Result
	if cfg.JournalSource == "kafka" {
		res = r.ReplayKafka(config.SplitBrokers(cfg.KafkaBootstrap), cfg.TopicResponses, m.LastJournalOffset)
	} else {
		res = r.ReplayJournal(cfg.Journal, m.LastJournalOffset)
	}
	if res.Error != nil {
		return fmt.Errorf("replay: %w", res.Error)
	}

	mreg.Applied.Add(float64(res.Applied))
	mreg.Skipped.Add(float64(res.Skipped))
	mreg.ReplayBytes.Add(float64(res.Bytes))
	mreg.TTRSec.Set(time.Since(t1).Seconds())
	if m.SnapshotID != "" {
		mreg.LastManifestAgeSec.Set(m.Age(time.Now()).Seconds())
	}

	runs, err := state.Runs(st)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	logger.Info("recovery cycle",
		zap.String("snapshot", m.SnapshotID),
		zap.Int("applied", res.Applied),
		zap.Int("skipped", res.Skipped),
		zap.Int64("replay_bytes", res.Bytes),
		zap.Int64("head", headOffset(cfg)),
		zap.Strings("runs", runs),
		zap.Duration("ttr", time.Since(t1)))
	return nil
}

// headOffset returns the last offset of partition 0 of the response topic,
// or -1 when it cannot be read or the journal is file based.
func headOffset(cfg Config) int64 {
	brokers := config.SplitBrokers(cfg.KafkaBootstrap)
	if cfg.JournalSource != "kafka" || len(brokers) == 0 {
		return -1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := kafka.DialLeader(ctx, "tcp", brokers[0], cfg.TopicResponses, 0)
	if err != nil {
		return -1
	}
	defer conn.Close()
	off, err := conn.ReadLastOffset()
	if err != nil {
		return -1
	}
	return off - 1
}

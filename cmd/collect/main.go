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

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"bosim/internal/config"
	"bosim/internal/logging"
	"bosim/internal/manifest"
	"bosim/internal/metrics"
	"bosim/internal/snapshot"
	"bosim/internal/state"
)

// Config holds CLI flags for the response collector.
type Config struct {
	KafkaBootstrap   string
	GroupID          string
	TopicResponses   string
	TopicSnapshots   string
	ManifestKey      string
	ManifestSink     string // file|kafka|both
	StoreBackend     string // memory|pebble|badger
	StoreDir         string
	SnapshotDir      string
	SnapshotInterval int
	Journal          string
	MetricsAddr      string
	LogEnv           string
	LogLevel         string
}

func main() {
	base, err := config.Load(os.Getenv("BOSIM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := readFlags(base)

	logger, err := logging.New(cfg.LogEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("collect failed", zap.Error(err))
	}
}

func readFlags(base config.Config) Config {
	var cfg Config
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", base.Kafka.Bootstrap, "kafka bootstrap servers")
	flag.StringVar(&cfg.GroupID, "group-id", base.Kafka.GroupID, "consumer group id")
	flag.StringVar(&cfg.TopicResponses, "topic-responses", base.Kafka.TopicResponses, "topic carrying create responses")
	flag.StringVar(&cfg.TopicSnapshots, "topic-snapshots", base.Kafka.TopicSnapshots, "compacted topic for manifests")
	flag.StringVar(&cfg.ManifestKey, "manifest-key", base.Kafka.ManifestKey, "manifest record key")
	flag.StringVar(&cfg.ManifestSink, "manifest-sink", "file", "manifest sink: file|kafka|both")
	flag.StringVar(&cfg.StoreBackend, "store", base.Store.Backend, "response store: memory|pebble|badger")
	flag.StringVar(&cfg.StoreDir, "store-dir", base.Store.Dir, "response store directory")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", base.Store.SnapshotDir, "snapshot directory")
	flag.IntVar(&cfg.SnapshotInterval, "snapshot-interval", base.Store.SnapshotInterval, "snapshot interval seconds (0 = only on exit)")
	flag.StringVar(&cfg.Journal, "journal", base.Store.Journal, "response journal path")
	flag.StringVar(&cfg.MetricsAddr, "http", base.Metrics.Addr, "http listen for /metrics")
	flag.StringVar(&cfg.LogEnv, "log-env", base.Log.Env, "dev|prod")
	flag.StringVar(&cfg.LogLevel, "log-level", base.Log.Level, "log level")
	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	if cfg.KafkaBootstrap == "" {
		return errors.New("kafka bootstrap is required")
	}
	st, closeStore, err := state.Open(cfg.StoreBackend, cfg.StoreDir)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer closeStore()

	journal, err := state.OpenFileJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}

	var pubs manifest.MultiPublisher
	if cfg.ManifestSink == "file" || cfg.ManifestSink == "both" {
		pubs = append(pubs, manifest.NewFileManifest(cfg.SnapshotDir))
	}
	if cfg.ManifestSink == "kafka" || cfg.ManifestSink == "both" {
		pubs = append(pubs, manifest.NewTopicManifest(config.SplitBrokers(cfg.KafkaBootstrap), cfg.TopicSnapshots, cfg.ManifestKey))
	}

	mreg := metrics.NewRegistry()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mreg.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	col := &collector{
		store:   st,
		journal: journal,
		snap:    snapshot.NewFilesystemSnapshotter(cfg.SnapshotDir),
		pub:     pubs,
		metrics: mreg,
		log:     logger,
	}

	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBootstrap,
		"group.id":           cfg.GroupID,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer c.Close()
	if err := c.SubscribeTopics([]string{cfg.TopicResponses}, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	logger.Info("collector started",
		zap.String("topic", cfg.TopicResponses),
		zap.String("store", cfg.StoreBackend),
		zap.Int64("journal_offset", journal.Offset()))

	var tick <-chan time.Time
	if cfg.SnapshotInterval > 0 {
		t := time.NewTicker(time.Duration(cfg.SnapshotInterval) * time.Second)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down, writing final snapshot")
			return col.checkpoint(time.Now())
		case now := <-tick:
			if err := col.checkpoint(now); err != nil {
				return err
			}
			continue
		default:
		}

		msg, err := c.ReadMessage(time.Second)
		if err != nil {
			var kerr ck.Error
			if errors.As(err, &kerr) && kerr.IsTimeout() {
				continue
			}
			logger.Warn("read message", zap.Error(err))
			continue
		}
		if err := col.process(msg.Value); err != nil {
			// a poison record must not block the topic; log and move past it
			logger.Error("bad response record",
				zap.Int32("partition", msg.TopicPartition.Partition),
				zap.Any("offset", msg.TopicPartition.Offset),
				zap.Error(err))
		}
		if _, err := c.CommitMessage(msg); err != nil {
			logger.Warn("commit offset", zap.Error(err))
		}
	}
}

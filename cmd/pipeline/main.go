package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bosim/internal/config"
	"bosim/internal/logging"
	"bosim/internal/metrics"
	"bosim/internal/normalize"
	"bosim/internal/outbox"
	"bosim/internal/pipeline"
	"bosim/internal/state"
	"bosim/internal/stocksql"
)

// Config holds CLI flags for one stage run.
type Config struct {
	Stage     string
	RunID     string
	AccountID string
	Seed      int64

	// input documents; empty means absent
	Simulation     string
	BuyOrdersOnly  string
	BuyOrderOutput string
	Rows           string
	PatchSource    string
	Responses      string
	IDs            string

	OutDir         string
	Sink           string // none|file|kafka|both
	KafkaBootstrap string
	TopicRequests  string

	StoreBackend string // memory|pebble|badger
	StoreDir     string

	XLSX        string
	MetricsFile string
	LogEnv      string
	LogLevel    string
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("pipeline failed", zap.String("stage", cfg.Stage), zap.Error(err))
	}
}

func readFlags(base config.Config) Config {
	var cfg Config
	flag.StringVar(&cfg.Stage, "stage", pipeline.StageBuyOrders, "buy-orders|completions|receipts|receipts-from-rows|stocks")
	flag.StringVar(&cfg.RunID, "run", "", "run id; generated when empty")
	flag.StringVar(&cfg.AccountID, "account", "", "accountId query parameter for request paths")
	flag.Int64Var(&cfg.Seed, "seed", base.Pipeline.Seed, "completion lateness seed (0 = time based)")
	flag.StringVar(&cfg.Simulation, "simulation", "", "full simulation result JSON")
	flag.StringVar(&cfg.BuyOrdersOnly, "bo-only", "", "buy-orders-only simulation result JSON")
	flag.StringVar(&cfg.BuyOrderOutput, "bo-output", "", "buy-orders stage output JSON")
	flag.StringVar(&cfg.Rows, "rows", "", "persisted buy-order rows JSON")
	flag.StringVar(&cfg.PatchSource, "patch-source", "", "explicit buy orders to complete JSON")
	flag.StringVar(&cfg.Responses, "responses", "", "create responses JSON; falls back to the response store")
	flag.StringVar(&cfg.IDs, "ids", "", "created buy-order ids JSON")
	flag.StringVar(&cfg.OutDir, "out", base.Pipeline.OutDir, "directory for stage results")
	flag.StringVar(&cfg.Sink, "sink", base.Pipeline.Sink, "request sink: none|file|kafka|both")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", base.Kafka.Bootstrap, "kafka bootstrap servers")
	flag.StringVar(&cfg.TopicRequests, "topic-requests", base.Kafka.TopicRequests, "kafka topic for requests")
	flag.StringVar(&cfg.StoreBackend, "store", base.Store.Backend, "response store: memory|pebble|badger")
	flag.StringVar(&cfg.StoreDir, "store-dir", base.Store.Dir, "response store directory")
	flag.StringVar(&cfg.XLSX, "xlsx", "", "also export the stock echo set to this .xlsx file")
	flag.StringVar(&cfg.MetricsFile, "metrics-file", base.Metrics.Textfile, "write metrics in textfile format here")
	flag.StringVar(&cfg.LogEnv, "log-env", base.Log.Env, "dev|prod")
	flag.StringVar(&cfg.LogLevel, "log-level", base.Log.Level, "log level")
	flag.Parse()
	return cfg
}

func run(cfg Config, logger *zap.Logger) error {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	logger = logger.With(zap.String("run", cfg.RunID))

	in, err := readInputs(cfg)
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	reg := metrics.NewRegistry()
	r := &pipeline.Runner{
		Log:       logger,
		Out:       sink,
		Metrics:   reg,
		StockSQL:  stocksql.NewBuilder(logger),
		RunID:     cfg.RunID,
		AccountID: cfg.AccountID,
		Now:       func() time.Time { return time.Now().UTC() },
	}
	if cfg.Seed != 0 {
		r.Rand = rand.New(rand.NewSource(cfg.Seed))
	}

	needsResponses := cfg.Stage == pipeline.StageCompletions || cfg.Stage == pipeline.StageReceipts
	if needsResponses && in.Responses == nil && cfg.StoreBackend != "memory" {
		st, closeStore, err := state.Open(cfg.StoreBackend, cfg.StoreDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		resp, err := pipeline.StoredResponses(st, cfg.RunID)
		_ = closeStore()
		if err != nil {
			return fmt.Errorf("load responses: %w", err)
		}
		logger.Info("responses loaded from store", zap.Int("responses", len(resp)))
		in.Responses = resp
	}

	var result any
	switch cfg.Stage {
	case pipeline.StageBuyOrders:
		result, err = r.BuyOrders(in)
	case pipeline.StageCompletions:
		result, err = r.Completions(in)
	case pipeline.StageReceipts:
		result, err = r.Receipts(in)
	case pipeline.StageReceiptsFromRows:
		result, err = r.ReceiptsFromRows(in)
	case pipeline.StageStocks:
		snap := r.Stocks(in)
		result = snap
		if cfg.XLSX != "" {
			err = writeXLSX(cfg.XLSX, snap)
		}
	default:
		return fmt.Errorf("unknown stage %q", cfg.Stage)
	}
	if err != nil {
		return err
	}

	path, err := writeResult(cfg.OutDir, cfg.Stage, result)
	if err != nil {
		return err
	}
	logger.Info("stage result written", zap.String("path", path))

	if cfg.MetricsFile != "" {
		if err := reg.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

func readInputs(cfg Config) (pipeline.Inputs, error) {
	var in pipeline.Inputs
	for _, f := range []struct {
		path string
		dst  *any
	}{
		{cfg.Simulation, &in.Simulation},
		{cfg.BuyOrdersOnly, &in.BuyOrdersOnly},
		{cfg.BuyOrderOutput, &in.BuyOrderOutput},
		{cfg.Rows, &in.Rows},
		{cfg.PatchSource, &in.PatchSource},
		{cfg.Responses, &in.Responses},
		{cfg.IDs, &in.IDs},
	} {
		if f.path == "" {
			continue
		}
		v, err := readJSON(f.path)
		if err != nil {
			return in, err
		}
		*f.dst = v
	}
	return in, nil
}

func readJSON(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	v, err := normalize.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

func openSink(cfg Config) (outbox.Writer, func(), error) {
	var writers []outbox.Writer
	closeFn := func() {}
	if cfg.Sink == "file" || cfg.Sink == "both" {
		fw, err := outbox.NewFileWriter(cfg.OutDir, "requests.jsonl")
		if err != nil {
			return nil, closeFn, fmt.Errorf("init request file: %w", err)
		}
		writers = append(writers, fw)
	}
	if cfg.Sink == "kafka" || cfg.Sink == "both" {
		brokers := config.SplitBrokers(cfg.KafkaBootstrap)
		if len(brokers) == 0 {
			return nil, closeFn, errors.New("kafka sink needs -kafka-bootstrap")
		}
		kw := outbox.NewKafkaWriter(brokers, cfg.TopicRequests)
		closeFn = func() { _ = kw.Close() }
		writers = append(writers, kw)
	}
	switch len(writers) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return writers[0], closeFn, nil
	default:
		return outbox.NewMultiWriter(writers...), closeFn, nil
	}
}

func writeResult(dir, stage string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	path := filepath.Join(dir, stage+".json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return path, nil
}

func writeXLSX(path string, snap stocksql.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create xlsx: %w", err)
	}
	defer f.Close()
	return stocksql.WriteXLSX(f, snap.Rows)
}

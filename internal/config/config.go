package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log struct {
		Env   string
		Level string
	} `mapstructure:"log"`

	Kafka struct {
		Bootstrap      string
		GroupID        string `mapstructure:"group_id"`
		TopicRequests  string `mapstructure:"topic_requests"`
		TopicResponses string `mapstructure:"topic_responses"`
		TopicSnapshots string `mapstructure:"topic_snapshots"`
		ManifestKey    string `mapstructure:"manifest_key"`
	} `mapstructure:"kafka"`

	Store struct {
		Backend          string // memory|pebble|badger
		Dir              string
		SnapshotDir      string `mapstructure:"snapshot_dir"`
		SnapshotInterval int    `mapstructure:"snapshot_interval"`
		Journal          string
	} `mapstructure:"store"`

	Pipeline struct {
		OutDir string `mapstructure:"out_dir"`
		Sink   string // file|kafka|both
		Seed   int64
	} `mapstructure:"pipeline"`

	Metrics struct {
		Addr     string
		Textfile string
	} `mapstructure:"metrics"`
}

const EnvPrefix = "BOSIM"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.env", "prod")
	v.SetDefault("log.level", "info")
	v.SetDefault("kafka.bootstrap", "")
	v.SetDefault("kafka.group_id", "bosim-collect")
	v.SetDefault("kafka.topic_requests", "bosim.requests")
	v.SetDefault("kafka.topic_responses", "bosim.responses")
	v.SetDefault("kafka.topic_snapshots", "bosim.snapshots")
	v.SetDefault("kafka.manifest_key", "bosim-manifest-latest")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.dir", "./data/responses")
	v.SetDefault("store.snapshot_dir", "./snapshots")
	v.SetDefault("store.snapshot_interval", 60)
	v.SetDefault("store.journal", "./journal/responses.jsonl")
	v.SetDefault("pipeline.out_dir", "./out")
	v.SetDefault("pipeline.sink", "file")
	v.SetDefault("pipeline.seed", 0)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.textfile", "")
}

// Load reads defaults, then an optional YAML file at path, then BOSIM_*
// environment variables. A .env in the working directory is loaded first
// when present; variables already set in the environment win over it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Brokers splits the comma-separated bootstrap list, dropping blanks.
func (c Config) Brokers() []string { return SplitBrokers(c.Kafka.Bootstrap) }

func SplitBrokers(bootstrap string) []string {
	var out []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

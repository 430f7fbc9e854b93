package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the harness.
const EnvPrefix = "RAFFLE"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL       string
	Raffle       string
	// Raffles is Raffle split on commas, for commands that accept several.
	Raffles      []string
	Coordinator  string
	PrivateKey   string
	PlayerKeys   []string
	Timeout      time.Duration
	PollInterval time.Duration
	LogLevel     string

	UpdateFrontEnd      bool
	FrontEndAddressFile string
	FrontEndABIFile     string
	ArtifactFile        string

	Value    string
	Entrants int
	Interval uint64
	Checks   []string

	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Sink              string
	Out               string
	PGDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("timeout", 5*time.Minute)
	v.SetDefault("poll-interval", 4*time.Second)
	v.SetDefault("log-level", "info")
	v.SetDefault("update-front-end", false)
	v.SetDefault("front-end-address-file", "../nextjs-smartcontract-lottery/constants/contractAddress.json")
	v.SetDefault("front-end-abi-file", "../nextjs-smartcontract-lottery/constants/abi.json")
	v.SetDefault("artifact", "./deployments/localhost/Raffle.json")
	v.SetDefault("entrants", 3)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("sink", "jsonl")
	v.SetDefault("out", "./data/raffle_events.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:       v.GetString("rpc"),
		Raffle:       v.GetString("raffle"),
		Raffles:      getStringSlice(v, "raffle"),
		Coordinator:  v.GetString("coordinator"),
		PrivateKey:   v.GetString("private-key"),
		PlayerKeys:   getStringSlice(v, "player-keys"),
		Timeout:      v.GetDuration("timeout"),
		PollInterval: v.GetDuration("poll-interval"),
		LogLevel:     v.GetString("log-level"),

		UpdateFrontEnd:      v.GetBool("update-front-end"),
		FrontEndAddressFile: v.GetString("front-end-address-file"),
		FrontEndABIFile:     v.GetString("front-end-abi-file"),
		ArtifactFile:        v.GetString("artifact"),

		Value:    v.GetString("value"),
		Entrants: v.GetInt("entrants"),
		Interval: v.GetUint64("interval"),
		Checks:   getStringSlice(v, "checks"),

		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Sink:              v.GetString("sink"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
	}

	return cfg, nil
}

// RequireRPC reports a missing RPC endpoint.
func (c Config) RequireRPC() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	return nil
}

// RequireRaffle reports a missing RPC endpoint or raffle address.
func (c Config) RequireRaffle() error {
	if err := c.RequireRPC(); err != nil {
		return err
	}
	if c.Raffle == "" {
		return fmt.Errorf("raffle address is required")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

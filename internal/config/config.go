package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"neoswaps/internal/fixed"
)

const envPrefix = "NEOSWAPS"

// Config holds configuration for the run command, loaded from flags, env, or config file.
type Config struct {
	Input             string
	Out               string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	StateFile         string
	ToSeq             uint64
	PGDSN             string
	BatchSize         int
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
	Engine            EngineConfig
}

// EngineConfig holds the pool engine parameters.
type EngineConfig struct {
	MaxSwapFee      *uint256.Int
	MaxTreeDepth    uint32
	ExternalFeeRate *uint256.Int
	Treasury        common.Address
	ExitFeeSink     common.Address
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":                "./data/events.jsonl",
		"errors":             "./data/command_errors.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"state-file":         "./data/state.json",
		"batch-size":         500,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
		"max-swap-fee":       "0.1",
		"tree-depth":         uint32(9),
		"external-fee-rate":  "0",
		"exit-fee-sink":      "0x0000000000000000000000000000000000000000",
	})
	if err != nil {
		return Config{}, err
	}

	if v.GetString("in") == "" {
		return Config{}, fmt.Errorf("in is required")
	}

	engineCfg, err := loadEngine(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Input:             v.GetString("in"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		StateFile:         v.GetString("state-file"),
		ToSeq:             v.GetUint64("to-seq"),
		PGDSN:             v.GetString("pg-dsn"),
		BatchSize:         v.GetInt("batch-size"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
		Engine:            engineCfg,
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("batch-size must be > 0")
	}
	if cfg.CheckpointEnabled && cfg.StateFile == "" {
		return Config{}, fmt.Errorf("state-file is required when checkpoints are enabled")
	}

	return cfg, nil
}

func loadEngine(v *viper.Viper) (EngineConfig, error) {
	maxSwapFee, err := fixed.Parse(v.GetString("max-swap-fee"))
	if err != nil {
		return EngineConfig{}, fmt.Errorf("max-swap-fee: %w", err)
	}
	rate, err := fixed.Parse(v.GetString("external-fee-rate"))
	if err != nil {
		return EngineConfig{}, fmt.Errorf("external-fee-rate: %w", err)
	}
	if rate.Cmp(fixed.Base()) >= 0 {
		return EngineConfig{}, fmt.Errorf("external-fee-rate must be below 1")
	}

	cfg := EngineConfig{
		MaxSwapFee:      maxSwapFee,
		MaxTreeDepth:    v.GetUint32("tree-depth"),
		ExternalFeeRate: rate,
	}
	if cfg.ExitFeeSink, err = parseAddress("exit-fee-sink", v.GetString("exit-fee-sink")); err != nil {
		return EngineConfig{}, err
	}
	if !rate.IsZero() {
		if cfg.Treasury, err = parseAddress("treasury", v.GetString("treasury")); err != nil {
			return EngineConfig{}, err
		}
	}
	return cfg, nil
}

func parseAddress(key, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", key, value)
	}
	return common.HexToAddress(value), nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
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
	return cleanStrings(strings.Split(input, ","))
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

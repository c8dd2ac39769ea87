package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	StateFile string
	Markets   []uint64
	LogLevel  string
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"state-file": "./data/state.json",
		"log-level":  "info",
	})
	if err != nil {
		return InspectConfig{}, err
	}

	cfg := InspectConfig{
		StateFile: v.GetString("state-file"),
		LogLevel:  v.GetString("log-level"),
	}
	for _, item := range getStringSlice(v, "market") {
		id, err := strconv.ParseUint(item, 10, 64)
		if err != nil {
			return InspectConfig{}, fmt.Errorf("invalid market id %q: %w", item, err)
		}
		cfg.Markets = append(cfg.Markets, id)
	}
	if cfg.StateFile == "" {
		return InspectConfig{}, fmt.Errorf("state-file is required")
	}
	return cfg, nil
}

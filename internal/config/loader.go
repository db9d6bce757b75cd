package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if FACEGATE_CONFIG is set
//  3. env (prefix FACEGATE_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("FACEGATE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: FACEGATE_ADDR, FACEGATE_MATCH_THRESHOLD, ...
	// Map env keys like FACEGATE_BATCH_SIZE -> batch_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("FACEGATE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "facegate_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations that could never run or, worse, could
// widen access.
func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.MatchThreshold <= 0 {
		return fmt.Errorf("%w: match_threshold must be positive", ErrInvalidConfig)
	}
	if c.MaxDistance <= 0 {
		return fmt.Errorf("%w: max_distance must be positive", ErrInvalidConfig)
	}
	if c.QualityFloor < 0 || c.QualityFloor > 1 {
		return fmt.Errorf("%w: quality_floor must be in [0,1]", ErrInvalidConfig)
	}
	if c.DetectorConfidenceFloor < 0 || c.DetectorConfidenceFloor > 1 {
		return fmt.Errorf("%w: detector_confidence_floor must be in [0,1]", ErrInvalidConfig)
	}
	switch c.DistanceMetric {
	case "euclidean", "cosine":
	default:
		return fmt.Errorf("%w: unknown distance_metric %q", ErrInvalidConfig, c.DistanceMetric)
	}
	seen := make(map[string]struct{}, len(c.Zones))
	for _, z := range c.Zones {
		if z.ID == "" {
			return fmt.Errorf("%w: zone with empty id", ErrInvalidConfig)
		}
		if _, dup := seen[z.ID]; dup {
			return fmt.Errorf("%w: duplicate zone id %q", ErrInvalidConfig, z.ID)
		}
		seen[z.ID] = struct{}{}
	}
	for camera, zoneID := range c.Cameras {
		if _, ok := seen[zoneID]; !ok {
			return fmt.Errorf("%w: camera %q bound to unknown zone %q", ErrInvalidConfig, camera, zoneID)
		}
	}
	return nil
}

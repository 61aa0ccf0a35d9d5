/*
runner.go - YAML configuration for batch runs

PURPOSE:
  A batch run needs more than pipeline thresholds: where the SQLite
  database lives, which threshold document to apply, and whether an
  external validator is reachable. Those operational knobs live in a
  YAML file next to the deployment, while the threshold document itself
  stays JSON (see config.go) so the two can be versioned independently.

EXAMPLE runner.yaml:
  database: ./assortment.db
  granularity: product
  profitability: true
  validator_url: http://validator.internal:9090
  validator_timeout: 5s
  config_file: ./thresholds.json
*/
package factory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// RUNNER CONFIG
// =============================================================================

// Duration wraps time.Duration so YAML can carry values like "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// RunnerConfig is the operational configuration of one batch run.
type RunnerConfig struct {
	Database         string   `yaml:"database"`
	Granularity      string   `yaml:"granularity"`
	Profitability    bool     `yaml:"profitability"`
	ValidatorURL     string   `yaml:"validator_url"`
	ValidatorTimeout Duration `yaml:"validator_timeout"`

	// ConfigFile optionally points at a JSON threshold document. When
	// empty, the granularity defaults apply.
	ConfigFile string `yaml:"config_file"`
}

// DefaultRunnerConfig returns the config used when no YAML file is given.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Database:         "assortment.db",
		Granularity:      "category",
		ValidatorTimeout: Duration{5 * time.Second},
	}
}

// LoadRunnerConfig reads and validates a YAML runner configuration.
func LoadRunnerConfig(path string) (RunnerConfig, error) {
	cfg := DefaultRunnerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read runner config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse runner config: %w", err)
	}

	if cfg.Database == "" {
		return cfg, fmt.Errorf("runner config: database path is required")
	}
	if _, err := parseGranularity(cfg.Granularity); err != nil {
		return cfg, fmt.Errorf("runner config: %w", err)
	}
	if cfg.ValidatorTimeout.Duration <= 0 {
		cfg.ValidatorTimeout = DefaultRunnerConfig().ValidatorTimeout
	}
	return cfg, nil
}

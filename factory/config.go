/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON threshold documents into assortment.Config values. This
  enables pipeline tuning without code changes - merchandising analysts
  can adjust thresholds in JSON, and the factory creates the proper Go
  structs with validation and defaults.

WHY JSON?
  - Non-developers can retune a run
  - Easy integration with an admin UI
  - Version control for threshold documents
  - Database storage of run configs

JSON SCHEMA:
  {
    "granularity": "product",
    "adoption_threshold": 0.8,
    "sales_threshold": 1500,
    "trim_percentile": 10,
    "demand_cap_multiple": 3,
    "min_stores_selling": 5,
    "min_adoption": 0.25,
    "min_predicted_sellthrough": 30,
    "validator_mode": "absent_pass",
    "validator_error_as_absent": false,
    "profitability": {
      "enabled": true,
      "roi_threshold": 0.30,
      "margin_uplift_threshold": 100,
      "min_comparables": 10,
      "default_margin_rate": 0.35
    }
  }

KEY FEATURES:
  - Starts from DefaultConfig for the document's granularity, so an
    empty document is a valid document
  - Overrides only the fields the document sets
  - Validates ranges (fractions in [0,1], thresholds non-negative)

USAGE:
  factory := NewConfigFactory()
  cfg, err := factory.ParseConfig(jsonString)
  pipeline := assortment.NewPipeline(cfg, validator)

SEE ALSO:
  - assortment/config.go: Config type and granularity defaults
  - factory/runner.go: YAML runner configuration files
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/assortment-engine/assortment"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of a pipeline configuration.
// Pointer fields distinguish "absent" from "explicitly zero".
type ConfigJSON struct {
	Granularity             string             `json:"granularity"`
	AdoptionThreshold       *float64           `json:"adoption_threshold,omitempty"`
	SalesThreshold          *float64           `json:"sales_threshold,omitempty"`
	TrimPercentile          *float64           `json:"trim_percentile,omitempty"`
	DemandCapMultiple       *float64           `json:"demand_cap_multiple,omitempty"`
	MinStoresSelling        *int               `json:"min_stores_selling,omitempty"`
	MinAdoption             *float64           `json:"min_adoption,omitempty"`
	MinPredictedSellthrough *float64           `json:"min_predicted_sellthrough,omitempty"`
	ValidatorMode           string             `json:"validator_mode,omitempty"`
	ValidatorErrorAsAbsent  *bool              `json:"validator_error_as_absent,omitempty"`
	Profitability           *ProfitabilityJSON `json:"profitability,omitempty"`
}

// ProfitabilityJSON represents the economics filter configuration.
type ProfitabilityJSON struct {
	Enabled               bool     `json:"enabled"`
	ROIThreshold          *float64 `json:"roi_threshold,omitempty"`
	MarginUpliftThreshold *float64 `json:"margin_uplift_threshold,omitempty"`
	MinComparables        *int     `json:"min_comparables,omitempty"`
	DefaultMarginRate     *float64 `json:"default_margin_rate,omitempty"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts JSON threshold documents to Config values.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseConfig parses a JSON document into a validated Config.
func (f *ConfigFactory) ParseConfig(jsonStr string) (assortment.Config, error) {
	var cj ConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return assortment.Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigJSON to a Config, layering document overrides
// on top of the granularity defaults.
func (f *ConfigFactory) FromJSON(cj ConfigJSON) (assortment.Config, error) {
	granularity, err := parseGranularity(cj.Granularity)
	if err != nil {
		return assortment.Config{}, err
	}

	cfg := assortment.DefaultConfig(granularity)

	if cj.AdoptionThreshold != nil {
		cfg.AdoptionThreshold = *cj.AdoptionThreshold
	}
	if cj.SalesThreshold != nil {
		cfg.SalesThreshold = assortment.NewMoney(*cj.SalesThreshold)
	}
	if cj.TrimPercentile != nil {
		cfg.TrimPercentile = *cj.TrimPercentile
	}
	if cj.DemandCapMultiple != nil {
		cfg.DemandCapMultiple = decimal.NewFromFloat(*cj.DemandCapMultiple)
	}
	if cj.MinStoresSelling != nil {
		cfg.MinStoresSelling = *cj.MinStoresSelling
	}
	if cj.MinAdoption != nil {
		cfg.MinAdoption = *cj.MinAdoption
	}
	if cj.MinPredictedSellthrough != nil {
		cfg.MinPredictedST = *cj.MinPredictedSellthrough
	}
	if cj.ValidatorMode != "" {
		mode, err := parseValidatorMode(cj.ValidatorMode)
		if err != nil {
			return assortment.Config{}, err
		}
		cfg.ValidatorMode = mode
	}
	if cj.ValidatorErrorAsAbsent != nil {
		cfg.ValidatorErrorAsAbsent = *cj.ValidatorErrorAsAbsent
	}

	if pj := cj.Profitability; pj != nil {
		cfg.ProfitabilityMode = pj.Enabled
		if pj.ROIThreshold != nil {
			cfg.ROIThreshold = decimal.NewFromFloat(*pj.ROIThreshold)
		}
		if pj.MarginUpliftThreshold != nil {
			cfg.MarginUpliftThreshold = assortment.NewMoney(*pj.MarginUpliftThreshold)
		}
		if pj.MinComparables != nil {
			cfg.MinComparables = *pj.MinComparables
		}
		if pj.DefaultMarginRate != nil {
			cfg.DefaultMarginRate = decimal.NewFromFloat(*pj.DefaultMarginRate)
		}
	}

	if err := validate(cfg); err != nil {
		return assortment.Config{}, err
	}
	return cfg, nil
}

// ToJSON converts a Config back to its document form.
func (f *ConfigFactory) ToJSON(cfg assortment.Config) ConfigJSON {
	adoption := cfg.AdoptionThreshold
	sales, _ := cfg.SalesThreshold.Value.Float64()
	trim := cfg.TrimPercentile
	stores := cfg.MinStoresSelling
	minAdoption := cfg.MinAdoption
	minST := cfg.MinPredictedST
	errAbsent := cfg.ValidatorErrorAsAbsent
	roi, _ := cfg.ROIThreshold.Float64()
	uplift, _ := cfg.MarginUpliftThreshold.Value.Float64()
	comparables := cfg.MinComparables
	margin, _ := cfg.DefaultMarginRate.Float64()

	cj := ConfigJSON{
		Granularity:             string(cfg.Granularity),
		AdoptionThreshold:       &adoption,
		SalesThreshold:          &sales,
		TrimPercentile:          &trim,
		MinStoresSelling:        &stores,
		MinAdoption:             &minAdoption,
		MinPredictedSellthrough: &minST,
		ValidatorMode:           string(cfg.ValidatorMode),
		ValidatorErrorAsAbsent:  &errAbsent,
		Profitability: &ProfitabilityJSON{
			Enabled:               cfg.ProfitabilityMode,
			ROIThreshold:          &roi,
			MarginUpliftThreshold: &uplift,
			MinComparables:        &comparables,
			DefaultMarginRate:     &margin,
		},
	}
	if !cfg.DemandCapMultiple.IsZero() {
		capMultiple, _ := cfg.DemandCapMultiple.Float64()
		cj.DemandCapMultiple = &capMultiple
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseGranularity(s string) (assortment.Granularity, error) {
	switch s {
	case "", "category":
		return assortment.GranularityCategory, nil
	case "product":
		return assortment.GranularityProduct, nil
	default:
		return "", fmt.Errorf("unknown granularity: %q", s)
	}
}

func parseValidatorMode(s string) (assortment.ValidatorMode, error) {
	switch s {
	case "absent_pass":
		return assortment.ValidatorAbsentPass, nil
	case "absent_reject":
		return assortment.ValidatorAbsentReject, nil
	default:
		return "", fmt.Errorf("unknown validator mode: %q", s)
	}
}

func validate(cfg assortment.Config) error {
	if cfg.AdoptionThreshold < 0 || cfg.AdoptionThreshold > 1 {
		return fmt.Errorf("adoption_threshold must be in [0,1], got %v", cfg.AdoptionThreshold)
	}
	if cfg.MinAdoption < 0 || cfg.MinAdoption > 1 {
		return fmt.Errorf("min_adoption must be in [0,1], got %v", cfg.MinAdoption)
	}
	if cfg.SalesThreshold.IsNegative() {
		return fmt.Errorf("sales_threshold must be non-negative")
	}
	if cfg.TrimPercentile < 0 || cfg.TrimPercentile >= 50 {
		return fmt.Errorf("trim_percentile must be in [0,50), got %v", cfg.TrimPercentile)
	}
	if cfg.DemandCapMultiple.IsNegative() {
		return fmt.Errorf("demand_cap_multiple must be non-negative")
	}
	if cfg.MinStoresSelling < 0 {
		return fmt.Errorf("min_stores_selling must be non-negative")
	}
	if cfg.MinComparables < 0 {
		return fmt.Errorf("min_comparables must be non-negative")
	}
	if cfg.DefaultMarginRate.IsNegative() || cfg.DefaultMarginRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("default_margin_rate must be in [0,1)")
	}
	return nil
}

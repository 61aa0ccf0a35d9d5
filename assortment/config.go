/*
config.go - Threshold configuration for the opportunity pipeline

PURPOSE:
  One immutable configuration value object passed explicitly into each
  component's constructor. Nothing in this package reads ambient or global
  state: every threshold that tunes the pipeline lives here.

GRANULARITY DEFAULTS:
  Category mode (coarse features):
    - 70% adoption, 100 currency units of cluster sales
  Product mode (fine-grained features):
    - 80% adoption, 1500 currency units of cluster sales
    - Demand estimates additionally capped at a multiple of the peer
      median, because a single exceptionally large peer can otherwise
      produce runaway recommendations.

VALIDATOR MODES:
  The external sell-through validator is an optional capability. Whether
  its absence counts as a pass or a rejection is configuration, not
  hard-coded behavior:
    ValidatorAbsentPass:   absent capability passes the check (default,
                           matches historical behavior)
    ValidatorAbsentReject: absent capability rejects every candidate

EXAMPLE:
  cfg := assortment.DefaultConfig(assortment.GranularityCategory)
  cfg.ProfitabilityMode = true
  pipeline := assortment.NewPipeline(cfg, validator)
*/
package assortment

import "github.com/shopspring/decimal"

// =============================================================================
// VALIDATOR MODES
// =============================================================================

type ValidatorMode string

const (
	// ValidatorAbsentPass treats a missing validator capability as an
	// automatic pass of the external check.
	ValidatorAbsentPass ValidatorMode = "absent_pass"

	// ValidatorAbsentReject rejects every candidate when no validator
	// capability is configured.
	ValidatorAbsentReject ValidatorMode = "absent_reject"
)

// =============================================================================
// CONFIG - Immutable pipeline configuration
// =============================================================================

// Config carries every tunable threshold of the pipeline. Construct with
// DefaultConfig and override fields before handing it to NewPipeline;
// components copy it by value and never mutate it.
type Config struct {
	Granularity Granularity

	// FeatureDemandAnalyzer: a feature is well-selling iff BOTH hold.
	AdoptionThreshold float64 // fraction of cluster stores selling, in [0,1]
	SalesThreshold    Money   // total cluster sales

	// OpportunityScanner
	TrimPercentile   float64         // trim below this and above (100 - this), default 10
	DemandCapMultiple decimal.Decimal // product mode only: cap estimate at multiple of peer median; zero disables

	// ApprovalGate (all comparisons inclusive, >=)
	MinStoresSelling  int
	MinAdoption       float64
	MinPredictedST    float64
	ValidatorMode     ValidatorMode
	ValidatorErrorAsAbsent bool // treat a failing validator call as "unavailable" instead of a rejection

	// ProfitabilityFilter
	ProfitabilityMode     bool
	ROIThreshold          decimal.Decimal
	MarginUpliftThreshold Money
	MinComparables        int
	DefaultMarginRate     decimal.Decimal
}

// DefaultConfig returns the tuned defaults for a granularity mode.
func DefaultConfig(g Granularity) Config {
	cfg := Config{
		Granularity:       g,
		AdoptionThreshold: 0.70,
		SalesThreshold:    NewMoneyFromInt(100),

		TrimPercentile: 10,

		MinStoresSelling: 5,
		MinAdoption:      0.25,
		MinPredictedST:   30.0,
		ValidatorMode:    ValidatorAbsentPass,

		ROIThreshold:          decimal.NewFromFloat(0.30),
		MarginUpliftThreshold: NewMoneyFromInt(100),
		MinComparables:        10,
		DefaultMarginRate:     decimal.NewFromFloat(0.35),
	}

	if g == GranularityProduct {
		// Narrower features carry noisier signal and require stronger
		// peer consensus before recommending.
		cfg.AdoptionThreshold = 0.80
		cfg.SalesThreshold = NewMoneyFromInt(1500)
		cfg.DemandCapMultiple = decimal.NewFromInt(3)
	}

	return cfg
}

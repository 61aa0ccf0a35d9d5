/*
pipeline.go - Single-pass batch orchestration

PURPOSE:
  Wires the five stages together and owns the run-level concerns the
  stages themselves stay out of:

  - required-input validation (fatal before any stage runs)
  - stage-count diagnostics for the run summary
  - run-level cancellation via context (there is no per-opportunity
    cancellation concept)
  - output schema validation before anything is handed to persistence

  Failures in the numeric stages are deterministic data-quality
  conditions, never transient faults: nothing here retries.

STAGE ORDER:
  FeatureDemandAnalyzer -> OpportunityScanner -> ApprovalGate
      -> ProfitabilityFilter -> StoreAggregator

OUTPUT:
  Result.Opportunities  one row per approved opportunity
  Result.Summaries      exactly one row per assigned store
  Result.Diagnostics    counts at each filtering stage
*/
package assortment

import (
	"context"
	"fmt"
)

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Diagnostics counts candidates at each filtering stage of one run.
type Diagnostics struct {
	ClustersAnalyzed    int
	FeaturesAnalyzed    int
	WellSellingFeatures int
	CandidatesScanned   int
	MissingPriceDrops   int
	GateRejections      map[string]int // keyed by rejection reason
	ProfitabilityDrops  int
	Approved            int
}

func (d Diagnostics) String() string {
	gated := 0
	for _, n := range d.GateRejections {
		gated += n
	}
	return fmt.Sprintf(
		"clusters=%d features=%d well_selling=%d scanned=%d no_price=%d gate_rejected=%d profitability_rejected=%d approved=%d",
		d.ClustersAnalyzed, d.FeaturesAnalyzed, d.WellSellingFeatures,
		d.CandidatesScanned, d.MissingPriceDrops, gated, d.ProfitabilityDrops, d.Approved,
	)
}

// Result is the full output of one pipeline run.
type Result struct {
	Opportunities []Opportunity  // approved only, deterministic order
	Rejected      []Opportunity  // gate / profitability rejections, with reasons
	Summaries     []StoreSummary // one per assigned store
	Diagnostics   Diagnostics
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs the full opportunity identification batch. Stateless
// across runs; safe to reuse for successive datasets.
type Pipeline struct {
	cfg       Config
	validator SellthroughValidator
}

// NewPipeline builds a pipeline. validator may be nil (capability absent;
// see validator.go and Config.ValidatorMode).
func NewPipeline(cfg Config, validator SellthroughValidator) *Pipeline {
	return &Pipeline{cfg: cfg, validator: validator}
}

// Run executes the batch over one dataset. Fatal errors abort before any
// output is produced; the returned Result is complete or nil.
func (p *Pipeline) Run(ctx context.Context, ds Dataset) (*Result, error) {
	if err := validateInputs(ds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analyzer := NewFeatureDemandAnalyzer(p.cfg, ds)
	stats := analyzer.Analyze()

	diag := Diagnostics{
		FeaturesAnalyzed: len(stats),
		GateRejections:   make(map[string]int),
	}
	clusters := make(map[ClusterID]bool)
	var wellSelling []FeatureClusterStat
	for _, s := range stats {
		clusters[s.ClusterID] = true
		if s.WellSelling {
			wellSelling = append(wellSelling, s)
		}
	}
	diag.ClustersAnalyzed = len(clusters)
	diag.WellSellingFeatures = len(wellSelling)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scanner := NewOpportunityScanner(p.cfg, ds)
	candidates, discards := scanner.Scan(wellSelling)
	diag.CandidatesScanned = len(candidates) + len(discards)
	diag.MissingPriceDrops = len(discards)

	gate := NewApprovalGate(p.cfg, p.validator)
	gated, err := gate.Evaluate(ctx, candidates, stats)
	if err != nil {
		return nil, err
	}

	filter := NewProfitabilityFilter(p.cfg, ds)
	filtered := filter.Apply(gated)

	result := &Result{Diagnostics: diag}
	for _, opp := range filtered {
		if opp.Approved {
			result.Opportunities = append(result.Opportunities, opp)
			continue
		}
		result.Rejected = append(result.Rejected, opp)
		if opp.ApprovalReason == ReasonBelowProfitability {
			result.Diagnostics.ProfitabilityDrops++
		} else {
			result.Diagnostics.GateRejections[opp.ApprovalReason]++
		}
	}
	result.Diagnostics.Approved = len(result.Opportunities)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aggregator := NewStoreAggregator(ds)
	result.Summaries = aggregator.Aggregate(result.Opportunities)

	if err := ValidateResult(result); err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// INPUT / OUTPUT VALIDATION
// =============================================================================

// validateInputs enforces the required-table contract. PriceFact and
// MarginRate are optional; their absence only weakens the fallbacks.
func validateInputs(ds Dataset) error {
	if len(ds.Assignments) == 0 {
		return &MissingInputTableError{Table: "cluster_assignment"}
	}
	if len(ds.Sales) == 0 {
		return &MissingInputTableError{Table: "sales_fact"}
	}
	return nil
}

// ValidateResult checks the output tables against their schema contract
// before persistence. No partial output is ever persisted: a violation
// here fails the whole run.
func ValidateResult(r *Result) error {
	for _, opp := range r.Opportunities {
		if opp.Quantity < 1 {
			return &SchemaValidationError{
				Table:  "opportunity_detail",
				Reason: fmt.Sprintf("quantity %d < 1 for store %s feature %s", opp.Quantity, opp.StoreID, opp.FeatureKey),
			}
		}
		if !opp.UnitPrice.IsPositive() {
			return &SchemaValidationError{
				Table:  "opportunity_detail",
				Reason: fmt.Sprintf("non-positive unit price for store %s feature %s", opp.StoreID, opp.FeatureKey),
			}
		}
	}

	seen := make(map[StoreID]bool)
	for _, s := range r.Summaries {
		if seen[s.StoreID] {
			return &SchemaValidationError{
				Table:  "store_summary",
				Reason: fmt.Sprintf("duplicate row for store %s", s.StoreID),
			}
		}
		seen[s.StoreID] = true
		if s.TotalQuantity < 0 {
			return &SchemaValidationError{
				Table:  "store_summary",
				Reason: fmt.Sprintf("negative total quantity for store %s", s.StoreID),
			}
		}
	}
	return nil
}

/*
profitability.go - Conservative ROI / margin-uplift screen

PURPOSE:
  Optional fourth stage. Re-derives a SECOND, independent quantity
  estimate and screens each gate-approved opportunity on its economics.

COMPARABLE QUANTITY:
  ceil(median(peer sales) / unit_price), minimum 1. The plain median, NOT
  the trimmed/capped estimate the scanner used. The divergence is
  intentional: the recommendation quantity optimizes for a realistic
  stocking instruction, the comparable quantity for a conservative
  profitability screen. The two must never be unified into one value.

ECONOMICS:
  margin_rate     resolved via fallback (see below)
  unit_cost       = unit_price * (1 - margin_rate)
  margin_per_unit = unit_price - unit_cost
  margin_uplift   = margin_per_unit * comparable_quantity
  investment      = comparable_quantity * unit_cost
  roi             = margin_uplift / investment

FILTER RULE (keep iff ALL hold, inclusive):
  roi              >= ROIThreshold           (default 30%)
  margin_uplift    >= MarginUpliftThreshold  (default 100)
  comparable_count >= MinComparables         (default 10 peers)

MARGIN FALLBACK - ordered, first success wins:
  1. (store, feature)-specific rate
  2. store-level average rate
  3. the modeled default rate from Config

ROUNDING SENSITIVITY:
  Because comparable_quantity is ceiling-rounded, a candidate whose raw
  demand/price ratio sits just under an integer boundary loses one full
  unit of margin_uplift, which can flip it from kept to rejected for a
  difference of a few currency units. This is a required, testable
  property of the system, not a bug to remove.
*/
package assortment

import "github.com/shopspring/decimal"

// ReasonBelowProfitability is the recorded reason when the screen rejects.
const ReasonBelowProfitability = "below profitability threshold"

// =============================================================================
// PROFITABILITY FILTER
// =============================================================================

// ProfitabilityFilter computes opportunity economics and, when
// ProfitabilityMode is enabled, drops candidates that fail the screen.
type ProfitabilityFilter struct {
	cfg Config
	idx *datasetIndex

	marginChain []marginStrategy
}

func NewProfitabilityFilter(cfg Config, ds Dataset) *ProfitabilityFilter {
	f := &ProfitabilityFilter{cfg: cfg, idx: newDatasetIndex(ds)}
	f.marginChain = []marginStrategy{
		f.marginForFeature,
		f.marginForStore,
		f.marginDefault,
	}
	return f
}

// Apply annotates every approved opportunity with its economics. When
// ProfitabilityMode is enabled, opportunities failing the screen come
// back with Approved=false and a recorded reason; otherwise the
// economics are informational and the approval flag is left untouched.
func (f *ProfitabilityFilter) Apply(opps []Opportunity) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, opp := range opps {
		if !opp.Approved {
			out = append(out, opp)
			continue
		}
		out = append(out, f.applyOne(opp))
	}
	return out
}

func (f *ProfitabilityFilter) applyOne(opp Opportunity) Opportunity {
	peers := f.idx.peerSales(opp.ClusterID, opp.FeatureKey)
	opp.ComparableCount = len(peers)
	opp.ComparableQuantity = comparableQuantity(peers, opp.UnitPrice)

	opp.MarginRate = f.resolveMargin(opp.StoreID, opp.FeatureKey)

	one := decimal.NewFromInt(1)
	unitCost := opp.UnitPrice.Mul(one.Sub(opp.MarginRate))
	marginPerUnit := opp.UnitPrice.Sub(unitCost)

	opp.MarginUplift = marginPerUnit.MulInt(opp.ComparableQuantity)
	opp.Investment = unitCost.MulInt(opp.ComparableQuantity)
	if opp.Investment.IsPositive() {
		opp.ROI = opp.MarginUplift.Div(opp.Investment)
	} else {
		opp.ROI = decimal.Zero
	}

	if f.cfg.ProfitabilityMode && !f.passes(opp) {
		return reject(opp, ReasonBelowProfitability)
	}
	return opp
}

// comparableQuantity is the conservative estimate: plain median of peer
// sales divided by unit price, ceiling-rounded, minimum 1.
func comparableQuantity(peers []Money, price Money) int {
	if len(peers) == 0 {
		return 1
	}
	return Median(peers).CeilUnits(price)
}

func (f *ProfitabilityFilter) passes(opp Opportunity) bool {
	return opp.ROI.GreaterThanOrEqual(f.cfg.ROIThreshold) &&
		opp.MarginUplift.GreaterOrEqual(f.cfg.MarginUpliftThreshold) &&
		opp.ComparableCount >= f.cfg.MinComparables
}

// =============================================================================
// MARGIN FALLBACK CHAIN
// =============================================================================

type marginStrategy func(store StoreID, feature FeatureKey) (decimal.Decimal, bool)

func (f *ProfitabilityFilter) resolveMargin(store StoreID, feature FeatureKey) decimal.Decimal {
	for _, strategy := range f.marginChain {
		if rate, ok := strategy(store, feature); ok {
			return rate
		}
	}
	return f.cfg.DefaultMarginRate
}

// Level 1: rate recorded for exactly this (store, feature).
func (f *ProfitabilityFilter) marginForFeature(store StoreID, feature FeatureKey) (decimal.Decimal, bool) {
	rates := f.idx.featureMargins[store][feature]
	return avgRate(rates)
}

// Level 2: the store's average rate across every margin record it has,
// store-wide and feature-specific alike.
func (f *ProfitabilityFilter) marginForStore(store StoreID, _ FeatureKey) (decimal.Decimal, bool) {
	rates := append([]MarginRate{}, f.idx.storeMargins[store]...)
	for _, rs := range f.idx.featureMargins[store] {
		rates = append(rates, rs...)
	}
	return avgRate(rates)
}

// Level 3: the modeled default. Always succeeds.
func (f *ProfitabilityFilter) marginDefault(StoreID, FeatureKey) (decimal.Decimal, bool) {
	return f.cfg.DefaultMarginRate, true
}

func avgRate(rates []MarginRate) (decimal.Decimal, bool) {
	if len(rates) == 0 {
		return decimal.Zero, false
	}
	total := decimal.Zero
	for _, r := range rates {
		total = total.Add(r.Rate)
	}
	return total.Div(decimal.NewFromInt(int64(len(rates)))), true
}

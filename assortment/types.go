/*
Package assortment provides the core opportunity identification engine.

PURPOSE:
  This package contains the domain types and algorithms for recommending,
  per retail store, which product categories or SKUs the store is missing
  relative to well-performing peers in its cluster, how many units to
  stock, and whether the recommendation clears the profitability and
  confidence bars.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - SalesFact / ClusterAssignment / PriceFact / MarginRate: input records
  - Opportunity: A candidate recommendation, mutated through the gates
  - StoreSummary: One terminal roll-up row per store
  - Store/Cluster/Feature IDs: Type-safe identifiers

PIPELINE (left to right, each stage consumes the previous stage's output):
  FeatureDemandAnalyzer -> OpportunityScanner -> ApprovalGate
      -> ProfitabilityFilter (optional mode) -> StoreAggregator

DESIGN PRINCIPLES:
  1. Immutability: input tables are read-only; stages never mutate them
  2. Precision: Uses decimal.Decimal for all currency math
  3. Type Safety: Strong typing for IDs prevents mixing store/cluster IDs
  4. Determinism: identical inputs always produce identical output tables

SEE ALSO:
  - config.go: Threshold configuration value object
  - demand.go: Adoption and sales aggregates per (cluster, feature)
  - scanner.go: Missing-opportunity scan with price resolution
  - approval.go: Sell-through approval gate
  - profitability.go: ROI / margin-uplift screen
  - aggregate.go: Store-level roll-up
*/
package assortment

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount backed by decimal
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money       { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money    { return Money{Value: decimal.NewFromInt(int64(value))} }
func ZeroMoney() Money                   { return Money{Value: decimal.Zero} }

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(b Money) Money             { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money             { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money   { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(b Money) decimal.Decimal   { return m.Value.Div(b.Value) }
func (m Money) MulInt(n int) Money            { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) IsZero() bool                  { return m.Value.IsZero() }
func (m Money) IsPositive() bool              { return m.Value.IsPositive() }
func (m Money) IsNegative() bool              { return m.Value.IsNegative() }
func (m Money) GreaterThan(b Money) bool      { return m.Value.GreaterThan(b.Value) }
func (m Money) GreaterOrEqual(b Money) bool   { return m.Value.GreaterThanOrEqual(b.Value) }
func (m Money) LessThan(b Money) bool         { return m.Value.LessThan(b.Value) }
func (m Money) String() string                { return m.Value.String() }

// CeilUnits divides by a unit price and rounds up to whole units.
// The ceiling is a deliberate source of edge sensitivity: a ratio sitting
// fractionally below an integer boundary yields one fewer unit, which
// materially changes downstream economics. Downstream consumers depend on
// this exact discretization.
func (m Money) CeilUnits(price Money) int {
	units := int(m.Value.Div(price.Value).Ceil().IntPart())
	if units < 1 {
		return 1
	}
	return units
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StoreID string
type ClusterID string

// FeatureKey is either a coarse category or a fine-grained product
// identifier, depending on the analysis granularity mode.
type FeatureKey string

// Granularity selects which threshold defaults apply. Fine-grained
// features carry noisier signal and require stronger peer consensus.
type Granularity string

const (
	GranularityCategory Granularity = "category"
	GranularityProduct  Granularity = "product"
)

// =============================================================================
// INPUT RECORDS - Static per analysis period, read-only
// =============================================================================

// ClusterAssignment maps a store to its peer group.
type ClusterAssignment struct {
	StoreID   StoreID
	ClusterID ClusterID
}

// SalesFact is one store's sales of one feature over the analysis period.
// UnitPrice and Quantity are optional; absent values are nil.
type SalesFact struct {
	StoreID    StoreID
	FeatureKey FeatureKey
	Sales      Money
	UnitPrice  *Money
	Quantity   *int
}

// PriceFact is an optional price-specific reference record, used as the
// second level of the price fallback chain.
type PriceFact struct {
	StoreID    StoreID
	FeatureKey FeatureKey
	UnitPrice  Money
}

// MarginRate is an optional margin reference record. FeatureKey may be
// empty, meaning the rate applies store-wide.
type MarginRate struct {
	StoreID    StoreID
	FeatureKey FeatureKey
	Rate       decimal.Decimal
}

// Dataset bundles the input tables for one pipeline run.
type Dataset struct {
	Assignments []ClusterAssignment
	Sales       []SalesFact
	Prices      []PriceFact
	Margins     []MarginRate
}

// =============================================================================
// DERIVED RECORDS
// =============================================================================

// FeatureClusterStat is the per-(cluster, feature) aggregate produced by
// the FeatureDemandAnalyzer. Ephemeral: consumed only within the same run.
type FeatureClusterStat struct {
	ClusterID        ClusterID
	FeatureKey       FeatureKey
	StoresSelling    int
	PctStoresSelling float64 // in [0, 1]
	TotalSales       Money
	WellSelling      bool
}

// PriceSource records which level of the fallback chain resolved the price.
type PriceSource string

const (
	PriceFromSalesHistory  PriceSource = "sales_history"
	PriceFromPriceTable    PriceSource = "price_table"
	PriceFromClusterMedian PriceSource = "cluster_median"
)

// Opportunity is a candidate recommendation for one (store, feature) pair
// where the store currently lacks a feature that is well-selling among its
// cluster peers. Created by the scanner, mutated by the approval gate and
// the profitability filter, terminal at the aggregator.
//
// Quantity and ComparableQuantity are computed independently and must never
// be unified: Quantity optimizes for a realistic stocking instruction
// (trimmed/capped demand), ComparableQuantity for a conservative
// profitability screen (plain median). They serve different downstream
// consumers with different tolerance for conservatism.
type Opportunity struct {
	StoreID    StoreID
	ClusterID  ClusterID
	FeatureKey FeatureKey

	// Scanner output
	ExpectedSales Money
	UnitPrice     Money
	PriceSource   PriceSource
	Quantity      int

	// Approval gate output
	PredictedSellthrough float64 // percentage in [10, 70]
	Approved             bool
	ApprovalReason       string

	// Profitability filter output
	ComparableQuantity int
	ComparableCount    int
	MarginRate         decimal.Decimal
	MarginUplift       Money
	Investment         Money
	ROI                decimal.Decimal
}

// RetailValue is the shelf value of the recommended stocking quantity.
func (o Opportunity) RetailValue() Money {
	return o.UnitPrice.MulInt(o.Quantity)
}

// StoreSummary is the terminal per-store roll-up. Exactly one row exists
// per in-scope store, including all-zero rows for stores with no
// opportunities, to preserve row-count parity with downstream consumers.
type StoreSummary struct {
	StoreID                  StoreID
	ClusterID                ClusterID
	OpportunityCount         int
	TotalQuantity            int
	TotalInvestment          Money
	TotalRetailValue         Money
	AvgSellthroughImprovement float64
	ApprovedCount            int
	RuleFlag                 int // 1 iff OpportunityCount > 0
}

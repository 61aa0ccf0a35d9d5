/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND RATES:
  Every currency amount and every ratio crosses the wire as a decimal
  STRING ("437.50", "0.6667"), never as a float. Clients doing money
  math on float64 is how reconciliation bugs are born.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ConfigJSON threshold documents
*/
package api

import (
	"time"

	"github.com/warp/assortment-engine/assortment"
	"github.com/warp/assortment-engine/factory"
	"github.com/warp/assortment-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// TriggerRunRequest starts a batch run. The embedded threshold document
// is optional; an empty body runs with category-mode defaults.
type TriggerRunRequest struct {
	Config factory.ConfigJSON `json:"config"`
}

// RunDTO represents one manifest entry.
type RunDTO struct {
	ID          string `json:"id"`
	Granularity string `json:"granularity"`
	Approved    int    `json:"approved"`
	Summary     string `json:"summary"`
	CreatedAt   string `json:"created_at"`
}

// TriggerRunResponse is returned after a successful run.
type TriggerRunResponse struct {
	Run         RunDTO         `json:"run"`
	Diagnostics DiagnosticsDTO `json:"diagnostics"`
}

// DiagnosticsDTO mirrors the per-stage counts of one run.
type DiagnosticsDTO struct {
	ClustersAnalyzed    int            `json:"clusters_analyzed"`
	FeaturesAnalyzed    int            `json:"features_analyzed"`
	WellSellingFeatures int            `json:"well_selling_features"`
	CandidatesScanned   int            `json:"candidates_scanned"`
	MissingPriceDrops   int            `json:"missing_price_drops"`
	GateRejections      map[string]int `json:"gate_rejections"`
	ProfitabilityDrops  int            `json:"profitability_drops"`
	Approved            int            `json:"approved"`
}

// OpportunityDTO represents one recommendation row.
type OpportunityDTO struct {
	RunID                string `json:"run_id,omitempty"`
	StoreID              string `json:"store_id"`
	ClusterID            string `json:"cluster_id"`
	FeatureKey           string `json:"feature_key"`
	Quantity             int    `json:"quantity"`
	UnitPrice            string `json:"unit_price"`
	PriceSource          string `json:"price_source"`
	PredictedSellthrough float64 `json:"predicted_sellthrough"`
	ROI                  string `json:"roi"`
	MarginUplift         string `json:"margin_uplift"`
	Investment           string `json:"investment_required"`
	RetailValue          string `json:"retail_value"`
	ApprovalReason       string `json:"approval_reason"`
}

// SummaryDTO represents one store's rollup row.
type SummaryDTO struct {
	StoreID                   string  `json:"store_id"`
	ClusterID                 string  `json:"cluster_id"`
	OpportunityCount          int     `json:"opportunity_count"`
	ApprovedCount             int     `json:"approved_count"`
	TotalQuantity             int     `json:"total_quantity"`
	TotalInvestment           string  `json:"total_investment"`
	TotalRetailValue          string  `json:"total_retail_value"`
	AvgSellthroughImprovement float64 `json:"avg_sellthrough_improvement"`
	RuleFlag                  int     `json:"rule_flag"`
}

// LoadDatasetRequest replaces the input tables wholesale.
type LoadDatasetRequest struct {
	Assignments []AssignmentDTO `json:"assignments"`
	Sales       []SalesFactDTO  `json:"sales"`
	Prices      []PriceFactDTO  `json:"prices,omitempty"`
	Margins     []MarginRateDTO `json:"margins,omitempty"`
}

// AssignmentDTO maps a store to its peer cluster.
type AssignmentDTO struct {
	StoreID   string `json:"store_id"`
	ClusterID string `json:"cluster_id"`
}

// SalesFactDTO is one store/feature sales record. UnitPrice and Quantity
// are optional.
type SalesFactDTO struct {
	StoreID    string  `json:"store_id"`
	FeatureKey string  `json:"feature_key"`
	Sales      string  `json:"sales"`
	UnitPrice  *string `json:"unit_price,omitempty"`
	Quantity   *int    `json:"quantity,omitempty"`
}

// PriceFactDTO is one price reference record.
type PriceFactDTO struct {
	StoreID    string `json:"store_id"`
	FeatureKey string `json:"feature_key"`
	UnitPrice  string `json:"unit_price"`
}

// MarginRateDTO is one margin reference record. An empty feature key
// means the rate is store-wide.
type MarginRateDTO struct {
	StoreID    string `json:"store_id"`
	FeatureKey string `json:"feature_key,omitempty"`
	Rate       string `json:"rate"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSION
// =============================================================================

func toRunDTO(r sqlite.Run) RunDTO {
	return RunDTO{
		ID:          r.ID,
		Granularity: r.Granularity,
		Approved:    r.Approved,
		Summary:     r.Summary,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

func toDiagnosticsDTO(d assortment.Diagnostics) DiagnosticsDTO {
	rejections := d.GateRejections
	if rejections == nil {
		rejections = map[string]int{}
	}
	return DiagnosticsDTO{
		ClustersAnalyzed:    d.ClustersAnalyzed,
		FeaturesAnalyzed:    d.FeaturesAnalyzed,
		WellSellingFeatures: d.WellSellingFeatures,
		CandidatesScanned:   d.CandidatesScanned,
		MissingPriceDrops:   d.MissingPriceDrops,
		GateRejections:      rejections,
		ProfitabilityDrops:  d.ProfitabilityDrops,
		Approved:            d.Approved,
	}
}

func toOpportunityDTO(runID string, opp assortment.Opportunity) OpportunityDTO {
	return OpportunityDTO{
		RunID:                runID,
		StoreID:              string(opp.StoreID),
		ClusterID:            string(opp.ClusterID),
		FeatureKey:           string(opp.FeatureKey),
		Quantity:             opp.Quantity,
		UnitPrice:            opp.UnitPrice.String(),
		PriceSource:          string(opp.PriceSource),
		PredictedSellthrough: opp.PredictedSellthrough,
		ROI:                  opp.ROI.String(),
		MarginUplift:         opp.MarginUplift.String(),
		Investment:           opp.Investment.String(),
		RetailValue:          opp.RetailValue().String(),
		ApprovalReason:       opp.ApprovalReason,
	}
}

func toSummaryDTO(sum assortment.StoreSummary) SummaryDTO {
	return SummaryDTO{
		StoreID:                   string(sum.StoreID),
		ClusterID:                 string(sum.ClusterID),
		OpportunityCount:          sum.OpportunityCount,
		ApprovedCount:             sum.ApprovedCount,
		TotalQuantity:             sum.TotalQuantity,
		TotalInvestment:           sum.TotalInvestment.String(),
		TotalRetailValue:          sum.TotalRetailValue.String(),
		AvgSellthroughImprovement: sum.AvgSellthroughImprovement,
		RuleFlag:                  sum.RuleFlag,
	}
}

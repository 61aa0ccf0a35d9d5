package assortment_test

import (
	"testing"

	"github.com/warp/assortment-engine/assortment"
)

// =============================================================================
// ROW-COUNT PARITY
// =============================================================================

func TestAggregate_OneRowPerStoreIncludingZeroRows(t *testing.T) {
	// GIVEN: 10 assigned stores, approved opportunities for only 2 of them
	// THEN: exactly 10 summary rows, all-zero rows for the other 8
	ds := clusterDataset("c1", 10, 8, 500, 50)
	agg := assortment.NewStoreAggregator(ds)

	opps := []assortment.Opportunity{
		{StoreID: store(9), ClusterID: "c1", FeatureKey: "F", UnitPrice: money(50), Quantity: 10, PredictedSellthrough: 65, Approved: true, Investment: money(300)},
		{StoreID: store(10), ClusterID: "c1", FeatureKey: "F", UnitPrice: money(50), Quantity: 4, PredictedSellthrough: 65, Approved: true, Investment: money(120)},
	}

	summaries := agg.Aggregate(opps)
	if len(summaries) != 10 {
		t.Fatalf("row-count parity broken: expected 10 rows, got %d", len(summaries))
	}

	zeroRows := 0
	for _, s := range summaries {
		if s.OpportunityCount == 0 {
			zeroRows++
			if s.RuleFlag != 0 {
				t.Errorf("store %s: rule_flag must be 0 with no opportunities", s.StoreID)
			}
			if !s.TotalInvestment.IsZero() || !s.TotalRetailValue.IsZero() || s.TotalQuantity != 0 {
				t.Errorf("store %s: zero-opportunity row must be all-zero", s.StoreID)
			}
		}
	}
	if zeroRows != 8 {
		t.Errorf("expected 8 all-zero rows, got %d", zeroRows)
	}
}

func TestAggregate_SumsAndFlags(t *testing.T) {
	ds := clusterDataset("c1", 10, 8, 500, 50)
	agg := assortment.NewStoreAggregator(ds)

	opps := []assortment.Opportunity{
		{StoreID: store(9), ClusterID: "c1", FeatureKey: "F", UnitPrice: money(50), Quantity: 10, PredictedSellthrough: 60, Approved: true, Investment: money(300)},
		{StoreID: store(9), ClusterID: "c1", FeatureKey: "G", UnitPrice: money(20), Quantity: 5, PredictedSellthrough: 40, Approved: true, Investment: money(70)},
	}

	summaries := agg.Aggregate(opps)
	var row assortment.StoreSummary
	for _, s := range summaries {
		if s.StoreID == store(9) {
			row = s
		}
	}

	if row.OpportunityCount != 2 || row.ApprovedCount != 2 {
		t.Errorf("expected 2 opportunities, got count=%d approved=%d", row.OpportunityCount, row.ApprovedCount)
	}
	if row.TotalQuantity != 15 {
		t.Errorf("total quantity: expected 15, got %d", row.TotalQuantity)
	}
	// retail value = 10*50 + 5*20 = 600
	if !row.TotalRetailValue.Value.Equal(money(600).Value) {
		t.Errorf("retail value: expected 600, got %v", row.TotalRetailValue)
	}
	if !row.TotalInvestment.Value.Equal(money(370).Value) {
		t.Errorf("investment: expected 370, got %v", row.TotalInvestment)
	}
	if row.AvgSellthroughImprovement != 50 {
		t.Errorf("avg sell-through: expected 50, got %v", row.AvgSellthroughImprovement)
	}
	if row.RuleFlag != 1 {
		t.Errorf("rule_flag: expected 1, got %d", row.RuleFlag)
	}
}

func TestAggregate_RejectedOpportunitiesDoNotContribute(t *testing.T) {
	ds := clusterDataset("c1", 4, 3, 200, 20)
	agg := assortment.NewStoreAggregator(ds)

	opps := []assortment.Opportunity{
		{StoreID: store(4), ClusterID: "c1", FeatureKey: "F", Quantity: 3, Approved: false, ApprovalReason: assortment.ReasonLowAdoption},
	}

	for _, s := range agg.Aggregate(opps) {
		if s.OpportunityCount != 0 {
			t.Errorf("store %s: rejected opportunity leaked into the summary", s.StoreID)
		}
	}
}

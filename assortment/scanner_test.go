package assortment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/assortment-engine/assortment"
)

// =============================================================================
// MISSING-STORE SCAN
// =============================================================================

func TestScan_TenStoreScenario(t *testing.T) {
	// GIVEN: cluster of 10 stores, 8 selling F at 500 each (price 50)
	// WHEN: scanning the well-selling set
	// THEN: the 2 missing stores each receive an opportunity with
	//       expected sales = trimmed mean of the 8 peer values = 500
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 8, 500, 50)

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	scanner := assortment.NewOpportunityScanner(cfg, ds)

	opps, discards := scanner.Scan(analyzer.WellSelling())
	if len(discards) != 0 {
		t.Fatalf("expected no discards, got %v", discards)
	}
	if len(opps) != 2 {
		t.Fatalf("expected 2 opportunities (stores 9 and 10), got %d", len(opps))
	}

	for _, opp := range opps {
		if opp.StoreID != store(9) && opp.StoreID != store(10) {
			t.Errorf("unexpected opportunity store %s", opp.StoreID)
		}
		if !opp.ExpectedSales.Value.Equal(money(500).Value) {
			t.Errorf("expected demand 500, got %v", opp.ExpectedSales)
		}
		// ceil(500 / 50) = 10 units
		if opp.Quantity != 10 {
			t.Errorf("expected quantity 10, got %d", opp.Quantity)
		}
	}
}

func TestScan_SellingStoresAreNeverCandidates(t *testing.T) {
	cfg := openGateConfig()
	ds := clusterDataset("c1", 10, 8, 500, 50)

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	opps, _ := assortment.NewOpportunityScanner(cfg, ds).Scan(analyzer.WellSelling())

	for _, opp := range opps {
		for i := 1; i <= 8; i++ {
			if opp.StoreID == store(i) {
				t.Errorf("selling store %s must not receive an opportunity", opp.StoreID)
			}
		}
	}
}

// =============================================================================
// PRICE FALLBACK CHAIN
// =============================================================================

func TestScan_PriceFromOwnSalesHistory(t *testing.T) {
	// The missing store has a zero-sales row with a recorded unit price:
	// level 1 of the chain wins before any reference table is consulted.
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 8, 500, 50)
	ds.Sales = append(ds.Sales, assortment.SalesFact{
		StoreID: store(9), FeatureKey: "F", Sales: money(0), UnitPrice: moneyPtr(40),
	})
	// A competing PriceFact that must NOT win for store 9.
	ds.Prices = append(ds.Prices, assortment.PriceFact{StoreID: store(9), FeatureKey: "F", UnitPrice: money(99)})

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	opps, _ := assortment.NewOpportunityScanner(cfg, ds).Scan(analyzer.WellSelling())

	found := false
	for _, opp := range opps {
		if opp.StoreID != store(9) {
			continue
		}
		found = true
		if opp.PriceSource != assortment.PriceFromSalesHistory {
			t.Errorf("expected sales_history source, got %s", opp.PriceSource)
		}
		if !opp.UnitPrice.Value.Equal(money(40).Value) {
			t.Errorf("expected own-history price 40, got %v", opp.UnitPrice)
		}
		// ceil(500 / 40) = 13
		if opp.Quantity != 13 {
			t.Errorf("expected quantity 13, got %d", opp.Quantity)
		}
	}
	if !found {
		t.Fatal("no opportunity for store 9")
	}
}

func TestScan_PriceFromPriceTable(t *testing.T) {
	// No own history for the missing store; the price reference table is
	// the second level.
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 8, 500, 50)
	ds.Prices = append(ds.Prices,
		assortment.PriceFact{StoreID: store(9), FeatureKey: "F", UnitPrice: money(20)},
		assortment.PriceFact{StoreID: store(9), FeatureKey: "F", UnitPrice: money(30)},
	)

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	opps, _ := assortment.NewOpportunityScanner(cfg, ds).Scan(analyzer.WellSelling())

	for _, opp := range opps {
		if opp.StoreID != store(9) {
			continue
		}
		if opp.PriceSource != assortment.PriceFromPriceTable {
			t.Errorf("expected price_table source, got %s", opp.PriceSource)
		}
		// Average of 20 and 30.
		if !opp.UnitPrice.Value.Equal(money(25).Value) {
			t.Errorf("expected averaged table price 25, got %v", opp.UnitPrice)
		}
		return
	}
	t.Fatal("no opportunity for store 9")
}

func TestScan_PriceFromClusterMedian(t *testing.T) {
	// Nothing store-specific at all: the cluster median of the peers'
	// observed prices is the last resort before discarding.
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 8, 500, 50)

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	opps, _ := assortment.NewOpportunityScanner(cfg, ds).Scan(analyzer.WellSelling())

	for _, opp := range opps {
		if opp.PriceSource != assortment.PriceFromClusterMedian {
			t.Errorf("expected cluster_median source, got %s", opp.PriceSource)
		}
		if !opp.UnitPrice.Value.Equal(money(50).Value) {
			t.Errorf("expected peer median price 50, got %v", opp.UnitPrice)
		}
	}
}

func TestScan_NoResolvablePriceDiscards(t *testing.T) {
	// GIVEN: peers whose sales rows carry no unit price, no price table
	// WHEN: scanning
	// THEN: no opportunity exists and the discard reason is recorded;
	//       this is a normal outcome, not an error
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 0, 0, 0)
	for i := 1; i <= 8; i++ {
		ds.Sales = append(ds.Sales, assortment.SalesFact{
			StoreID: store(i), FeatureKey: "F", Sales: money(500),
		})
	}

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	opps, discards := assortment.NewOpportunityScanner(cfg, ds).Scan(analyzer.WellSelling())

	if len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
	if len(discards) != 2 {
		t.Fatalf("expected 2 discards, got %d", len(discards))
	}
	for _, d := range discards {
		if d.Reason != assortment.ReasonNoValidPrice {
			t.Errorf("expected reason %q, got %q", assortment.ReasonNoValidPrice, d.Reason)
		}
	}
}

// =============================================================================
// DEMAND ESTIMATION
// =============================================================================

func TestScan_TrimmedMeanSuppressesOutlierPeer(t *testing.T) {
	// One peer sells 50x the others; the recommendation must not chase it.
	cfg := openGateConfig()
	amounts := []float64{400, 450, 500, 500, 500, 550, 600, 25000}
	ds := unevenClusterDataset("c1", 10, amounts, 50)

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	opps, _ := assortment.NewOpportunityScanner(cfg, ds).Scan(analyzer.WellSelling())

	if len(opps) == 0 {
		t.Fatal("expected opportunities")
	}
	if opps[0].ExpectedSales.GreaterThan(money(1000)) {
		t.Errorf("outlier peer leaked into the estimate: %v", opps[0].ExpectedSales)
	}
}

func TestScan_ProductModeCapsRunawayEstimate(t *testing.T) {
	// GIVEN: product granularity with a demand cap of 3x the peer median
	// WHEN: heavy peers drag even the trimmed mean upward
	// THEN: the estimate is capped at cap-multiple * median
	cfg := openGateConfig()
	cfg.Granularity = assortment.GranularityProduct
	cfg.DemandCapMultiple = decimal.NewFromInt(3)
	cfg.SalesThreshold = assortment.NewMoneyFromInt(100)
	cfg.AdoptionThreshold = 0.5

	// Five token-volume peers and three heavy ones: the peer median is 1,
	// so the cap binds at 3 while the trimmed mean sits in the thousands.
	amounts := []float64{1, 1, 1, 1, 1, 9000, 9100, 9200}
	ds := unevenClusterDataset("c1", 10, amounts, 50)

	analyzer := assortment.NewFeatureDemandAnalyzer(cfg, ds)
	opps, _ := assortment.NewOpportunityScanner(cfg, ds).Scan(analyzer.WellSelling())

	if len(opps) == 0 {
		t.Fatal("expected opportunities")
	}
	if !opps[0].ExpectedSales.Value.Equal(money(3).Value) {
		t.Errorf("expected estimate capped to 3x median = 3, got %v", opps[0].ExpectedSales)
	}
	if opps[0].Quantity != 1 {
		t.Errorf("expected minimum quantity 1, got %d", opps[0].Quantity)
	}
}

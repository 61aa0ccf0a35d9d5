package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/assortment-engine/assortment"
	"github.com/warp/assortment-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedDataset(t *testing.T, store *sqlite.Store) assortment.Dataset {
	t.Helper()
	ctx := context.Background()

	price := assortment.NewMoney(50)
	ds := assortment.Dataset{
		Assignments: []assortment.ClusterAssignment{
			{StoreID: "s1", ClusterID: "c1"},
			{StoreID: "s2", ClusterID: "c1"},
			{StoreID: "s3", ClusterID: "c1"},
		},
		Sales: []assortment.SalesFact{
			{StoreID: "s1", FeatureKey: "F", Sales: assortment.NewMoney(500), UnitPrice: &price},
			{StoreID: "s2", FeatureKey: "F", Sales: assortment.NewMoney(700)},
		},
		Prices: []assortment.PriceFact{
			{StoreID: "s3", FeatureKey: "F", UnitPrice: assortment.NewMoney(45)},
		},
		Margins: []assortment.MarginRate{
			{StoreID: "s3", FeatureKey: "F", Rate: decimal.NewFromFloat(0.40)},
			{StoreID: "s3", Rate: decimal.NewFromFloat(0.30)},
		},
	}

	require.NoError(t, store.SaveAssignments(ctx, ds.Assignments))
	require.NoError(t, store.SaveSalesFacts(ctx, ds.Sales))
	require.NoError(t, store.SavePriceFacts(ctx, ds.Prices))
	require.NoError(t, store.SaveMarginRates(ctx, ds.Margins))
	return ds
}

// =============================================================================
// DATASET ROUND-TRIP
// =============================================================================

func TestLoadDataset_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := seedDataset(t, store)

	got, err := store.LoadDataset(context.Background())
	require.NoError(t, err)

	require.Len(t, got.Assignments, 3)
	require.Len(t, got.Sales, 2)
	require.Len(t, got.Prices, 1)
	require.Len(t, got.Margins, 2)

	assert.Equal(t, want.Assignments, got.Assignments)

	// Decimal strings survive exactly; optional columns stay optional.
	require.NotNil(t, got.Sales[0].UnitPrice)
	assert.True(t, got.Sales[0].UnitPrice.Value.Equal(decimal.NewFromInt(50)))
	assert.Nil(t, got.Sales[1].UnitPrice)
	assert.True(t, got.Margins[1].Rate.Equal(decimal.NewFromFloat(0.40)))
}

// =============================================================================
// RESULT PERSISTENCE
// =============================================================================

func TestSaveResult_PersistsBothOutputTablesAndManifest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := &assortment.Result{
		Opportunities: []assortment.Opportunity{{
			StoreID:              "s3",
			ClusterID:            "c1",
			FeatureKey:           "F",
			UnitPrice:            assortment.NewMoney(50),
			PriceSource:          assortment.PriceFromClusterMedian,
			Quantity:             12,
			PredictedSellthrough: 65.0,
			Approved:             true,
			ApprovalReason:       assortment.ReasonApproved,
			MarginUplift:         assortment.NewMoney(240),
			Investment:           assortment.NewMoney(360),
			ROI:                  decimal.NewFromFloat(0.6667),
		}},
		Summaries: []assortment.StoreSummary{
			{StoreID: "s1", ClusterID: "c1", TotalInvestment: assortment.ZeroMoney(), TotalRetailValue: assortment.ZeroMoney()},
			{StoreID: "s3", ClusterID: "c1", OpportunityCount: 1, ApprovedCount: 1, TotalQuantity: 12, RuleFlag: 1,
				TotalInvestment: assortment.NewMoney(360), TotalRetailValue: assortment.NewMoney(600), AvgSellthroughImprovement: 65.0},
		},
	}
	result.Diagnostics.Approved = 1

	run, err := store.SaveResult(ctx, assortment.GranularityCategory, result)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	opps, err := store.ListOpportunities(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, 12, opps[0].Quantity)
	assert.True(t, opps[0].UnitPrice.Value.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, assortment.PriceFromClusterMedian, opps[0].PriceSource)

	sums, err := store.ListSummaries(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, sums, 2, "all-zero rows persist too")
	assert.Equal(t, 0, sums[0].RuleFlag)
	assert.Equal(t, 1, sums[1].RuleFlag)

	manifest, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, 1, manifest[0].Approved)

	fetched, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, run.ID, fetched.ID)
}

func TestSaveResult_RejectsNegativeQuantityAtTheSchema(t *testing.T) {
	// Defense in depth: the pipeline validates before persistence, and
	// the CHECK constraint backstops it.
	store := newTestStore(t)

	bad := &assortment.Result{
		Opportunities: []assortment.Opportunity{{
			StoreID: "s1", ClusterID: "c1", FeatureKey: "F",
			UnitPrice: assortment.NewMoney(50), Quantity: 0,
			ROI: decimal.Zero, MarginUplift: assortment.ZeroMoney(), Investment: assortment.ZeroMoney(),
		}},
	}
	_, err := store.SaveResult(context.Background(), assortment.GranularityCategory, bad)
	require.Error(t, err)

	// The failed transaction must leave no manifest row behind.
	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestGetRun_AbsentReturnsNil(t *testing.T) {
	store := newTestStore(t)
	run, err := store.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, run)
}

package assortment_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/assortment-engine/assortment"
)

// =============================================================================
// END-TO-END RUNS
// =============================================================================

func TestPipeline_EndToEnd(t *testing.T) {
	// GIVEN: 10 stores, 8 selling F at 500 (adoption 80% >= 70%,
	//        sales 4000 >= 100), no validator configured
	// THEN: both missing stores end up with approved opportunities and
	//       every store has a summary row
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 8, 500, 50)

	result, err := assortment.NewPipeline(cfg, nil).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Len(t, result.Opportunities, 2)
	assert.Len(t, result.Summaries, 10)
	assert.Equal(t, 2, result.Diagnostics.Approved)
	assert.Equal(t, 1, result.Diagnostics.WellSellingFeatures)
	assert.Equal(t, 2, result.Diagnostics.CandidatesScanned)

	for _, opp := range result.Opportunities {
		assert.GreaterOrEqual(t, opp.Quantity, 1, "quantity invariant")
		assert.True(t, opp.UnitPrice.IsPositive(), "unit price invariant")
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	// Re-running on identical inputs produces identical output tables:
	// no hidden randomness anywhere in the pipeline.
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	cfg.ProfitabilityMode = true

	var ds assortment.Dataset
	for c := 0; c < 3; c++ {
		cluster := assortment.ClusterID(string(rune('a' + c)))
		sub := clusterDataset(cluster, 10, 8, 500+float64(c)*100, 50)
		// clusterDataset numbers stores 1..10; disambiguate per cluster.
		for i := range sub.Assignments {
			sub.Assignments[i].StoreID = assortment.StoreID(string(cluster)) + "-" + sub.Assignments[i].StoreID
		}
		for i := range sub.Sales {
			sub.Sales[i].StoreID = assortment.StoreID(string(cluster)) + "-" + sub.Sales[i].StoreID
		}
		ds.Assignments = append(ds.Assignments, sub.Assignments...)
		ds.Sales = append(ds.Sales, sub.Sales...)
	}

	pipeline := assortment.NewPipeline(cfg, nil)
	first, err := pipeline.Run(context.Background(), ds)
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background(), ds)
	require.NoError(t, err)

	if !reflect.DeepEqual(first.Opportunities, second.Opportunities) {
		t.Error("opportunity detail differs between identical runs")
	}
	if !reflect.DeepEqual(first.Summaries, second.Summaries) {
		t.Error("store summaries differ between identical runs")
	}
}

func TestPipeline_DiscardsCountedInDiagnostics(t *testing.T) {
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 0, 0, 0)
	for i := 1; i <= 8; i++ {
		ds.Sales = append(ds.Sales, assortment.SalesFact{
			StoreID: store(i), FeatureKey: "F", Sales: money(500),
		})
	}

	result, err := assortment.NewPipeline(cfg, nil).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Empty(t, result.Opportunities)
	assert.Equal(t, 2, result.Diagnostics.MissingPriceDrops)
	assert.Len(t, result.Summaries, 10, "discards never break row-count parity")
}

func TestPipeline_GateRejectionsKeyedByReason(t *testing.T) {
	// 4 of 10 selling: adoption 40% passes well-selling only with a
	// loosened analyzer, then fails the gate's MinStoresSelling.
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	cfg.AdoptionThreshold = 0.3
	ds := clusterDataset("c1", 10, 4, 500, 50)

	result, err := assortment.NewPipeline(cfg, nil).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Empty(t, result.Opportunities)
	assert.Equal(t, 6, result.Diagnostics.GateRejections[assortment.ReasonTooFewStores])
	assert.Len(t, result.Rejected, 6)
}

// =============================================================================
// FATAL CONDITIONS
// =============================================================================

func TestPipeline_MissingRequiredTableAborts(t *testing.T) {
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	pipeline := assortment.NewPipeline(cfg, nil)

	t.Run("no assignments", func(t *testing.T) {
		ds := clusterDataset("c1", 10, 8, 500, 50)
		ds.Assignments = nil
		result, err := pipeline.Run(context.Background(), ds)
		require.ErrorIs(t, err, assortment.ErrMissingInputTable)
		assert.Nil(t, result, "no partial output on fatal error")
	})

	t.Run("no sales facts", func(t *testing.T) {
		ds := clusterDataset("c1", 10, 0, 0, 0)
		result, err := pipeline.Run(context.Background(), ds)
		require.ErrorIs(t, err, assortment.ErrMissingInputTable)
		assert.Nil(t, result)
	})
}

func TestPipeline_CancelledRunAborts(t *testing.T) {
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	ds := clusterDataset("c1", 10, 8, 500, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := assortment.NewPipeline(cfg, nil).Run(ctx, ds)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidateResult_RejectsSchemaViolations(t *testing.T) {
	ok := &assortment.Result{
		Opportunities: []assortment.Opportunity{{StoreID: "s1", Quantity: 1, UnitPrice: money(10)}},
		Summaries:     []assortment.StoreSummary{{StoreID: "s1"}},
	}
	require.NoError(t, assortment.ValidateResult(ok))

	badQty := &assortment.Result{
		Opportunities: []assortment.Opportunity{{StoreID: "s1", Quantity: 0, UnitPrice: money(10)}},
	}
	require.ErrorIs(t, assortment.ValidateResult(badQty), assortment.ErrSchemaValidation)

	badPrice := &assortment.Result{
		Opportunities: []assortment.Opportunity{{StoreID: "s1", Quantity: 1, UnitPrice: money(0)}},
	}
	require.ErrorIs(t, assortment.ValidateResult(badPrice), assortment.ErrSchemaValidation)

	dupRow := &assortment.Result{
		Summaries: []assortment.StoreSummary{{StoreID: "s1"}, {StoreID: "s1"}},
	}
	require.ErrorIs(t, assortment.ValidateResult(dupRow), assortment.ErrSchemaValidation)
}

/*
aggregate.go - Store-level roll-up of approved opportunities

PURPOSE:
  Terminal stage. Groups approved opportunities by store and emits exactly
  one StoreSummary row per in-scope store - INCLUDING stores with zero
  opportunities, as all-zero rows. Downstream consumers join these
  summaries against the store master by row count; dropping empty stores
  breaks that parity.

  rule_flag = 1 iff opportunity_count > 0, else 0.

  The accumulation is commutative and associative (sums and counts), so
  partial aggregates computed per cluster or per feature merge cleanly;
  this implementation runs single-pass.
*/
package assortment

// =============================================================================
// STORE AGGREGATOR
// =============================================================================

// StoreAggregator rolls approved opportunities into per-store summaries.
type StoreAggregator struct {
	idx *datasetIndex
}

func NewStoreAggregator(ds Dataset) *StoreAggregator {
	return &StoreAggregator{idx: newDatasetIndex(ds)}
}

// Aggregate emits one summary per assigned store, ordered by store ID.
// Only approved opportunities contribute; rejected ones were already
// accounted for in run diagnostics.
func (a *StoreAggregator) Aggregate(opps []Opportunity) []StoreSummary {
	byStore := make(map[StoreID][]Opportunity)
	for _, opp := range opps {
		if !opp.Approved {
			continue
		}
		byStore[opp.StoreID] = append(byStore[opp.StoreID], opp)
	}

	var summaries []StoreSummary
	for _, cluster := range a.idx.clusters {
		for _, store := range a.idx.clusterStores[cluster] {
			summaries = append(summaries, a.summarize(store, cluster, byStore[store]))
		}
	}
	return summaries
}

func (a *StoreAggregator) summarize(store StoreID, cluster ClusterID, opps []Opportunity) StoreSummary {
	summary := StoreSummary{
		StoreID:          store,
		ClusterID:        cluster,
		TotalInvestment:  ZeroMoney(),
		TotalRetailValue: ZeroMoney(),
	}

	totalST := 0.0
	for _, opp := range opps {
		summary.OpportunityCount++
		summary.ApprovedCount++
		summary.TotalQuantity += opp.Quantity
		summary.TotalInvestment = summary.TotalInvestment.Add(opp.Investment)
		summary.TotalRetailValue = summary.TotalRetailValue.Add(opp.RetailValue())
		totalST += opp.PredictedSellthrough
	}

	if summary.OpportunityCount > 0 {
		summary.AvgSellthroughImprovement = totalST / float64(summary.OpportunityCount)
		summary.RuleFlag = 1
	}
	return summary
}

/*
demand.go - Per-cluster feature demand analysis

PURPOSE:
  First stage of the pipeline. For every (cluster, feature) pair, computes
  adoption and sales aggregates and flags the pairs worth recommending:

    stores_selling      count of distinct stores with positive sales
    pct_stores_selling  stores_selling / cluster size
    total_cluster_sales sum of sales across the cluster

  A feature is WELL-SELLING in a cluster iff BOTH thresholds hold:

    pct_stores_selling  >= AdoptionThreshold
    total_cluster_sales >= SalesThreshold

  AND, not OR: high adoption of a low-revenue feature is not a signal,
  and neither is one store carrying the whole cluster's revenue.

SINGLE-STORE CLUSTERS:
  Adoption degenerates to 0% or 100%. These clusters are analyzed as-is:
  a 100%-adopted feature has no missing store, and a missing store has no
  selling peers to estimate demand from, so single-store clusters can
  never produce opportunities. See demand_test.go.
*/
package assortment

// =============================================================================
// FEATURE DEMAND ANALYZER
// =============================================================================

// FeatureDemandAnalyzer computes per-(cluster, feature) adoption stats.
type FeatureDemandAnalyzer struct {
	cfg Config
	idx *datasetIndex
}

func NewFeatureDemandAnalyzer(cfg Config, ds Dataset) *FeatureDemandAnalyzer {
	return &FeatureDemandAnalyzer{cfg: cfg, idx: newDatasetIndex(ds)}
}

// Analyze returns one stat row per (cluster, feature) pair observed in the
// joined sales data, in deterministic (cluster, feature) order.
func (a *FeatureDemandAnalyzer) Analyze() []FeatureClusterStat {
	var stats []FeatureClusterStat

	for _, cluster := range a.idx.clusters {
		clusterSize := len(a.idx.clusterStores[cluster])
		for _, feature := range a.idx.clusterFeatures(cluster) {
			stat := a.analyzeFeature(cluster, feature, clusterSize)
			stats = append(stats, stat)
		}
	}
	return stats
}

// WellSelling returns only the stat rows that cleared both thresholds.
func (a *FeatureDemandAnalyzer) WellSelling() []FeatureClusterStat {
	var out []FeatureClusterStat
	for _, s := range a.Analyze() {
		if s.WellSelling {
			out = append(out, s)
		}
	}
	return out
}

func (a *FeatureDemandAnalyzer) analyzeFeature(cluster ClusterID, feature FeatureKey, clusterSize int) FeatureClusterStat {
	selling := 0
	total := ZeroMoney()
	for _, store := range a.idx.clusterStores[cluster] {
		sales := a.idx.storeSales[store][feature]
		total = total.Add(sales)
		if sales.IsPositive() {
			selling++
		}
	}

	pct := 0.0
	if clusterSize > 0 {
		pct = float64(selling) / float64(clusterSize)
	}

	return FeatureClusterStat{
		ClusterID:        cluster,
		FeatureKey:       feature,
		StoresSelling:    selling,
		PctStoresSelling: pct,
		TotalSales:       total,
		WellSelling:      pct >= a.cfg.AdoptionThreshold && total.GreaterOrEqual(a.cfg.SalesThreshold),
	}
}

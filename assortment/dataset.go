/*
dataset.go - Indexed views over the input tables

PURPOSE:
  The pipeline stages all answer questions like "which stores are in this
  cluster", "how much did this store sell of this feature", "what prices
  did peers charge". This file builds those lookups once per run from the
  immutable input tables.

DETERMINISM:
  Map iteration order is randomized in Go, so every enumeration here goes
  through sorted key slices. Re-running the pipeline on identical inputs
  must produce byte-identical output tables.
*/
package assortment

import "sort"

// datasetIndex holds the derived lookups shared by the pipeline stages.
// Built once per run; read-only afterwards.
type datasetIndex struct {
	clusterOf     map[StoreID]ClusterID
	clusterStores map[ClusterID][]StoreID // sorted, distinct
	clusters      []ClusterID             // sorted

	// Per (store, feature): total sales and price observations.
	storeSales  map[StoreID]map[FeatureKey]Money
	salesPrices map[StoreID]map[FeatureKey][]Money // unit prices observed in SalesFact
	tablePrices map[StoreID]map[FeatureKey][]Money // unit prices from PriceFact

	// Margin rates keyed per store; feature-specific and store-wide rows
	// are kept separate for the fallback chain.
	featureMargins map[StoreID]map[FeatureKey][]MarginRate
	storeMargins   map[StoreID][]MarginRate
}

func newDatasetIndex(ds Dataset) *datasetIndex {
	idx := &datasetIndex{
		clusterOf:      make(map[StoreID]ClusterID),
		clusterStores:  make(map[ClusterID][]StoreID),
		storeSales:     make(map[StoreID]map[FeatureKey]Money),
		salesPrices:    make(map[StoreID]map[FeatureKey][]Money),
		tablePrices:    make(map[StoreID]map[FeatureKey][]Money),
		featureMargins: make(map[StoreID]map[FeatureKey][]MarginRate),
		storeMargins:   make(map[StoreID][]MarginRate),
	}

	seen := make(map[StoreID]bool)
	for _, a := range ds.Assignments {
		if seen[a.StoreID] {
			continue
		}
		seen[a.StoreID] = true
		idx.clusterOf[a.StoreID] = a.ClusterID
		idx.clusterStores[a.ClusterID] = append(idx.clusterStores[a.ClusterID], a.StoreID)
	}
	for c, stores := range idx.clusterStores {
		sort.Slice(stores, func(i, j int) bool { return stores[i] < stores[j] })
		idx.clusters = append(idx.clusters, c)
	}
	sort.Slice(idx.clusters, func(i, j int) bool { return idx.clusters[i] < idx.clusters[j] })

	for _, f := range ds.Sales {
		// Facts for unassigned stores are out of scope for this run.
		if _, ok := idx.clusterOf[f.StoreID]; !ok {
			continue
		}
		if idx.storeSales[f.StoreID] == nil {
			idx.storeSales[f.StoreID] = make(map[FeatureKey]Money)
			idx.salesPrices[f.StoreID] = make(map[FeatureKey][]Money)
		}
		idx.storeSales[f.StoreID][f.FeatureKey] = idx.storeSales[f.StoreID][f.FeatureKey].Add(f.Sales)
		if f.UnitPrice != nil && f.UnitPrice.IsPositive() {
			idx.salesPrices[f.StoreID][f.FeatureKey] = append(idx.salesPrices[f.StoreID][f.FeatureKey], *f.UnitPrice)
		}
	}

	for _, p := range ds.Prices {
		if !p.UnitPrice.IsPositive() {
			continue
		}
		if idx.tablePrices[p.StoreID] == nil {
			idx.tablePrices[p.StoreID] = make(map[FeatureKey][]Money)
		}
		idx.tablePrices[p.StoreID][p.FeatureKey] = append(idx.tablePrices[p.StoreID][p.FeatureKey], p.UnitPrice)
	}

	for _, m := range ds.Margins {
		if m.FeatureKey == "" {
			idx.storeMargins[m.StoreID] = append(idx.storeMargins[m.StoreID], m)
			continue
		}
		if idx.featureMargins[m.StoreID] == nil {
			idx.featureMargins[m.StoreID] = make(map[FeatureKey][]MarginRate)
		}
		idx.featureMargins[m.StoreID][m.FeatureKey] = append(idx.featureMargins[m.StoreID][m.FeatureKey], m)
	}

	return idx
}

// sells reports whether the store has positive sales of the feature.
func (idx *datasetIndex) sells(store StoreID, feature FeatureKey) bool {
	return idx.storeSales[store][feature].IsPositive()
}

// peerSales returns the total sales of each selling store in the cluster
// for the feature, ordered by store ID for determinism.
func (idx *datasetIndex) peerSales(cluster ClusterID, feature FeatureKey) []Money {
	var out []Money
	for _, s := range idx.clusterStores[cluster] {
		if idx.sells(s, feature) {
			out = append(out, idx.storeSales[s][feature])
		}
	}
	return out
}

// clusterFeatures returns every feature sold anywhere in the cluster,
// sorted for deterministic scan order.
func (idx *datasetIndex) clusterFeatures(cluster ClusterID) []FeatureKey {
	set := make(map[FeatureKey]bool)
	for _, s := range idx.clusterStores[cluster] {
		for f := range idx.storeSales[s] {
			set[f] = true
		}
	}
	out := make([]FeatureKey, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// avgPrice averages a set of price observations; ok is false when empty.
func avgPrice(prices []Money) (Money, bool) {
	if len(prices) == 0 {
		return ZeroMoney(), false
	}
	return Mean(prices), true
}

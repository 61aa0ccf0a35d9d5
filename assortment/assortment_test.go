package assortment_test

import (
	"fmt"

	"github.com/warp/assortment-engine/assortment"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared by every test file in this package.

func money(n float64) assortment.Money {
	return assortment.NewMoney(n)
}

func moneyPtr(n float64) *assortment.Money {
	m := assortment.NewMoney(n)
	return &m
}

func store(i int) assortment.StoreID {
	return assortment.StoreID(fmt.Sprintf("store-%02d", i))
}

// clusterDataset builds one cluster of `size` stores where the first
// `selling` stores sell feature F with the given per-store sales amount
// and unit price recorded in their sales history. The remaining stores
// have no row for F at all.
func clusterDataset(cluster assortment.ClusterID, size, selling int, sales, unitPrice float64) assortment.Dataset {
	var ds assortment.Dataset
	for i := 1; i <= size; i++ {
		ds.Assignments = append(ds.Assignments, assortment.ClusterAssignment{
			StoreID:   store(i),
			ClusterID: cluster,
		})
	}
	for i := 1; i <= selling; i++ {
		ds.Sales = append(ds.Sales, assortment.SalesFact{
			StoreID:    store(i),
			FeatureKey: "F",
			Sales:      money(sales),
			UnitPrice:  moneyPtr(unitPrice),
		})
	}
	return ds
}

// withPeerSales overrides the per-peer sales amounts of clusterDataset:
// peer i sells amounts[i] of F instead of a uniform amount.
func unevenClusterDataset(cluster assortment.ClusterID, size int, amounts []float64, unitPrice float64) assortment.Dataset {
	ds := clusterDataset(cluster, size, 0, 0, 0)
	for i, amount := range amounts {
		ds.Sales = append(ds.Sales, assortment.SalesFact{
			StoreID:    store(i + 1),
			FeatureKey: "F",
			Sales:      money(amount),
			UnitPrice:  moneyPtr(unitPrice),
		})
	}
	return ds
}

// openGateConfig returns a category config whose gate thresholds are low
// enough that scanner-focused tests are not gated out.
func openGateConfig() assortment.Config {
	cfg := assortment.DefaultConfig(assortment.GranularityCategory)
	cfg.MinStoresSelling = 1
	cfg.MinAdoption = 0
	cfg.MinPredictedST = 0
	return cfg
}

/*
scanner.go - Missing-opportunity scan with price and quantity resolution

PURPOSE:
  Second stage of the pipeline. For every well-selling (cluster, feature)
  pair, finds the stores in that cluster NOT currently selling the feature
  and turns each into a raw Opportunity:

  EXPECTED DEMAND:
    Trimmed mean of the selling peers' sales (10th/90th percentile trim)
    so that one outlier peer cannot over-skew the recommendation. In
    product granularity the estimate is additionally capped at
    DemandCapMultiple x the peer median.

  UNIT PRICE - ordered fallback, first success wins, never defaulted:
    1. the store's own average price from its sales history
    2. the store's average price from the price reference table
    3. the cluster's median price among selling peers
    4. discard the candidate with reason "no valid price"
    Discarding is a normal, expected outcome, counted in diagnostics.

  QUANTITY:
    ceil(expected_demand / unit_price), floored at 1 unit. The ceiling is
    a deliberate edge-sensitivity: ratios fractionally below an integer
    boundary round down one full unit, which materially changes the
    downstream economics. Reproduced exactly, never smoothed.

FALLBACK CHAIN SHAPE:
  Each price level is a pure strategy function evaluated lazily until one
  succeeds, so every level is independently testable.
*/
package assortment

// ReasonNoValidPrice is the recorded discard reason when every price
// fallback level fails.
const ReasonNoValidPrice = "no valid price"

// =============================================================================
// OPPORTUNITY SCANNER
// =============================================================================

// OpportunityScanner enumerates missing stores for well-selling features
// and resolves demand, price, and quantity for each candidate.
type OpportunityScanner struct {
	cfg Config
	idx *datasetIndex

	priceChain []priceStrategy
}

// Discard records a candidate dropped during the scan, for diagnostics.
type Discard struct {
	StoreID    StoreID
	ClusterID  ClusterID
	FeatureKey FeatureKey
	Reason     string
}

func NewOpportunityScanner(cfg Config, ds Dataset) *OpportunityScanner {
	s := &OpportunityScanner{cfg: cfg, idx: newDatasetIndex(ds)}
	s.priceChain = []priceStrategy{
		s.priceFromSalesHistory,
		s.priceFromPriceTable,
		s.priceFromClusterMedian,
	}
	return s
}

// Scan produces raw opportunities for every (well-selling feature, missing
// store) pair, plus the discards that failed price resolution.
func (s *OpportunityScanner) Scan(wellSelling []FeatureClusterStat) ([]Opportunity, []Discard) {
	var opps []Opportunity
	var discards []Discard

	for _, stat := range wellSelling {
		if !stat.WellSelling {
			continue
		}
		for _, store := range s.idx.clusterStores[stat.ClusterID] {
			if s.idx.sells(store, stat.FeatureKey) {
				continue
			}

			opp, ok := s.scanCandidate(store, stat)
			if !ok {
				discards = append(discards, Discard{
					StoreID:    store,
					ClusterID:  stat.ClusterID,
					FeatureKey: stat.FeatureKey,
					Reason:     ReasonNoValidPrice,
				})
				continue
			}
			opps = append(opps, opp)
		}
	}
	return opps, discards
}

func (s *OpportunityScanner) scanCandidate(store StoreID, stat FeatureClusterStat) (Opportunity, bool) {
	peers := s.idx.peerSales(stat.ClusterID, stat.FeatureKey)
	if len(peers) == 0 {
		// No selling peers: nothing to estimate demand from.
		return Opportunity{}, false
	}

	expected := s.expectedDemand(peers)

	price, source, ok := s.resolvePrice(store, stat.ClusterID, stat.FeatureKey)
	if !ok {
		return Opportunity{}, false
	}

	return Opportunity{
		StoreID:       store,
		ClusterID:     stat.ClusterID,
		FeatureKey:    stat.FeatureKey,
		ExpectedSales: expected,
		UnitPrice:     price,
		PriceSource:   source,
		Quantity:      expected.CeilUnits(price),
	}, true
}

// expectedDemand is the trimmed mean of peer sales, capped in product
// granularity at a multiple of the peer median.
func (s *OpportunityScanner) expectedDemand(peers []Money) Money {
	estimate := TrimmedMean(peers, s.cfg.TrimPercentile)

	if s.cfg.Granularity == GranularityProduct && s.cfg.DemandCapMultiple.IsPositive() {
		ceiling := Median(peers).Mul(s.cfg.DemandCapMultiple)
		if estimate.GreaterThan(ceiling) {
			estimate = ceiling
		}
	}
	return estimate
}

// =============================================================================
// PRICE FALLBACK CHAIN
// =============================================================================

// priceStrategy is one level of the fallback chain. ok=false means "try
// the next level"; no level ever returns a synthetic substitute.
type priceStrategy func(store StoreID, cluster ClusterID, feature FeatureKey) (Money, PriceSource, bool)

func (s *OpportunityScanner) resolvePrice(store StoreID, cluster ClusterID, feature FeatureKey) (Money, PriceSource, bool) {
	for _, strategy := range s.priceChain {
		if price, source, ok := strategy(store, cluster, feature); ok {
			return price, source, true
		}
	}
	return ZeroMoney(), "", false
}

// Level 1: the store's own historical average price for the feature.
func (s *OpportunityScanner) priceFromSalesHistory(store StoreID, _ ClusterID, feature FeatureKey) (Money, PriceSource, bool) {
	price, ok := avgPrice(s.idx.salesPrices[store][feature])
	return price, PriceFromSalesHistory, ok
}

// Level 2: the store's average price from the price reference table.
func (s *OpportunityScanner) priceFromPriceTable(store StoreID, _ ClusterID, feature FeatureKey) (Money, PriceSource, bool) {
	price, ok := avgPrice(s.idx.tablePrices[store][feature])
	return price, PriceFromPriceTable, ok
}

// Level 3: the cluster's median price among peers. Each peer contributes
// its own average observed price; the median is taken across peers so a
// single heavy discounter cannot drag the cluster price.
func (s *OpportunityScanner) priceFromClusterMedian(store StoreID, cluster ClusterID, feature FeatureKey) (Money, PriceSource, bool) {
	var peerPrices []Money
	for _, peer := range s.idx.clusterStores[cluster] {
		if peer == store {
			continue
		}
		if p, ok := avgPrice(s.idx.salesPrices[peer][feature]); ok {
			peerPrices = append(peerPrices, p)
		}
	}
	if len(peerPrices) == 0 {
		return ZeroMoney(), PriceFromClusterMedian, false
	}
	return Median(peerPrices), PriceFromClusterMedian, true
}

/*
approval.go - Multi-condition approval gate

PURPOSE:
  Third stage of the pipeline. Each raw opportunity gets exactly one
  evaluation against the gate; there is no retry. The gate first predicts
  sell-through from peer adoption, then applies the hard thresholds.

PREDICTED SELL-THROUGH:
  A smooth logistic (S-curve) maps adoption in [0,1] to a predicted
  sell-through percentage in [10,70], centered at 50% adoption:

    predicted = 10 + 60 * sigmoid(8 * (adoption - 0.5))

  Monotonic, saturating near the extremes: low adoption yields low
  predicted sell-through and vice versa.

APPROVAL RULE (ALL must hold, comparisons inclusive):
  1. external validator approves, or the capability is absent and the
     configured ValidatorMode treats absence as a pass
  2. stores_selling      >= MinStoresSelling  (default 5)
  3. pct_stores_selling  >= MinAdoption       (default 25%)
  4. predicted_sellthrough >= MinPredictedST  (default 30%)

  Any failing condition drops the opportunity with a recorded reason.
*/
package assortment

import (
	"context"
	"math"
)

// Rejection reasons recorded on gated-out opportunities.
const (
	ReasonApproved           = "approved"
	ReasonValidatorRejected  = "validator rejected"
	ReasonValidatorError     = "validator error"
	ReasonValidatorAbsent    = "validator unavailable"
	ReasonTooFewStores       = "too few selling stores"
	ReasonLowAdoption        = "adoption below minimum"
	ReasonLowPredictedST     = "predicted sell-through below minimum"
)

// =============================================================================
// APPROVAL GATE
// =============================================================================

// ApprovalGate accepts or rejects scanned opportunities. The validator
// may be nil; see validator.go for the absence semantics.
type ApprovalGate struct {
	cfg       Config
	validator SellthroughValidator
}

func NewApprovalGate(cfg Config, validator SellthroughValidator) *ApprovalGate {
	return &ApprovalGate{cfg: cfg, validator: validator}
}

// PredictedSellthrough maps adoption in [0,1] to a percentage in [10,70].
func PredictedSellthrough(adoption float64) float64 {
	return 10 + 60*sigmoid(8*(adoption-0.5))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Evaluate gates every opportunity once. Returned opportunities carry
// their predicted sell-through, approval flag, and reason; callers split
// approved from rejected. stats must contain the stat row for every
// (cluster, feature) present in opps.
func (g *ApprovalGate) Evaluate(ctx context.Context, opps []Opportunity, stats []FeatureClusterStat) ([]Opportunity, error) {
	statBy := make(map[ClusterID]map[FeatureKey]FeatureClusterStat)
	for _, s := range stats {
		if statBy[s.ClusterID] == nil {
			statBy[s.ClusterID] = make(map[FeatureKey]FeatureClusterStat)
		}
		statBy[s.ClusterID][s.FeatureKey] = s
	}

	out := make([]Opportunity, 0, len(opps))
	for _, opp := range opps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat := statBy[opp.ClusterID][opp.FeatureKey]
		out = append(out, g.evaluateOne(ctx, opp, stat))
	}
	return out, nil
}

func (g *ApprovalGate) evaluateOne(ctx context.Context, opp Opportunity, stat FeatureClusterStat) Opportunity {
	opp.PredictedSellthrough = PredictedSellthrough(stat.PctStoresSelling)

	if ok, reason := g.validatorCheck(ctx, opp); !ok {
		return reject(opp, reason)
	}
	if stat.StoresSelling < g.cfg.MinStoresSelling {
		return reject(opp, ReasonTooFewStores)
	}
	if stat.PctStoresSelling < g.cfg.MinAdoption {
		return reject(opp, ReasonLowAdoption)
	}
	if opp.PredictedSellthrough < g.cfg.MinPredictedST {
		return reject(opp, ReasonLowPredictedST)
	}

	opp.Approved = true
	opp.ApprovalReason = ReasonApproved
	return opp
}

// validatorCheck applies the external capability, if present. The current
// store count for a missing store is always zero.
func (g *ApprovalGate) validatorCheck(ctx context.Context, opp Opportunity) (bool, string) {
	if g.validator == nil {
		return g.absentOutcome()
	}

	result, err := g.validator.Validate(ctx, opp.StoreID, opp.FeatureKey, 0, opp.Quantity)
	if err != nil {
		if g.cfg.ValidatorErrorAsAbsent {
			return g.absentOutcome()
		}
		return false, ReasonValidatorError
	}
	if !result.Approved {
		return false, ReasonValidatorRejected
	}
	return true, ""
}

func (g *ApprovalGate) absentOutcome() (bool, string) {
	if g.cfg.ValidatorMode == ValidatorAbsentReject {
		return false, ReasonValidatorAbsent
	}
	return true, ""
}

func reject(opp Opportunity, reason string) Opportunity {
	opp.Approved = false
	opp.ApprovalReason = reason
	return opp
}

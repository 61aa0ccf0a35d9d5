/*
validator.go - Optional external sell-through validation capability

PURPOSE:
  The approval gate may consult an external collaborator that validates
  the proposed stocking count against its own sell-through model. The
  capability is OPTIONAL, and absence is modeled explicitly: the gate
  holds a nil SellthroughValidator when none is configured, and branches
  on presence. Absence is never simulated with a stub returning fixed
  values - passing a stub and passing nil are different configurations
  with different diagnostics.

CALL SEMANTICS:
  One synchronous request/response call per opportunity, no retry. A slow
  or erroring call is an explicit failure of the check (rejection) unless
  Config.ValidatorErrorAsAbsent is set, in which case it degrades to the
  configured absent-capability behavior.

SEE ALSO:
  - approval.go: the only caller
  - validator/http.go: production HTTP adapter
*/
package assortment

import "context"

// ValidationResult is the external validator's verdict for one candidate.
type ValidationResult struct {
	Approved      bool
	PredictedRate float64
}

// SellthroughValidator is the external validation capability. A nil
// validator means the capability is absent for this run.
type SellthroughValidator interface {
	Validate(ctx context.Context, store StoreID, feature FeatureKey, currentCount, proposedCount int) (ValidationResult, error)
}

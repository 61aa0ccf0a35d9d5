/*
handlers.go - HTTP API handlers for the assortment opportunity engine

PURPOSE:
  Exposes the opportunity engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Runs:
    POST   /api/runs                     Trigger a batch run
    GET    /api/runs                     Run manifest
    GET    /api/runs/{id}                One manifest entry
    GET    /api/runs/{id}/opportunities  Detail output table
    GET    /api/runs/{id}/summaries      Summary output table

  Stores:
    GET    /api/stores/{id}/opportunities Opportunities for one store

  Input data:
    POST   /api/dataset                  Replace the input tables
    POST   /api/reset                    Clear everything (dev only)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - ConfigFactory: JSON threshold document conversion
  - Validator: optional external sell-through capability (nil = absent)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (pipeline, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 422: Run aborted (missing input table, schema validation)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/assortment-engine/assortment"
	"github.com/warp/assortment-engine/factory"
	"github.com/warp/assortment-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	ConfigFactory *factory.ConfigFactory

	// Validator is the optional external sell-through capability.
	// nil means absent; Config.ValidatorMode decides what that implies.
	Validator assortment.SellthroughValidator
}

// NewHandler creates a new handler with the given store. validator may
// be nil.
func NewHandler(store *sqlite.Store, validator assortment.SellthroughValidator) *Handler {
	return &Handler{
		Store:         store,
		ConfigFactory: factory.NewConfigFactory(),
		Validator:     validator,
	}
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// TriggerRun executes the pipeline against the stored input tables and
// persists the output. The body optionally carries a threshold document.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.ConfigFactory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid config", err)
		return
	}

	ds, err := h.Store.LoadDataset(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load dataset", err)
		return
	}

	pipeline := assortment.NewPipeline(cfg, h.Validator)
	result, err := pipeline.Run(r.Context(), ds)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, assortment.ErrMissingInputTable) || errors.Is(err, assortment.ErrSchemaValidation) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, "Run aborted", err)
		return
	}

	run, err := h.Store.SaveResult(r.Context(), cfg.Granularity, result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist run", err)
		return
	}

	writeJSON(w, http.StatusCreated, TriggerRunResponse{
		Run:         toRunDTO(run),
		Diagnostics: toDiagnosticsDTO(result.Diagnostics),
	})
}

// ListRuns returns the run manifest, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a single manifest entry.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// ListRunOpportunities returns the detail output table of one run.
func (h *Handler) ListRunOpportunities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	opps, err := h.Store.ListOpportunities(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list opportunities", err)
		return
	}

	dtos := make([]OpportunityDTO, len(opps))
	for i, opp := range opps {
		dtos[i] = toOpportunityDTO(id, opp)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRunSummaries returns the summary output table of one run.
func (h *Handler) ListRunSummaries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	sums, err := h.Store.ListSummaries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list summaries", err)
		return
	}

	dtos := make([]SummaryDTO, len(sums))
	for i, sum := range sums {
		dtos[i] = toSummaryDTO(sum)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// STORE HANDLERS
// =============================================================================

// ListStoreOpportunities returns every persisted opportunity for one
// store across runs, newest run first.
func (h *Handler) ListStoreOpportunities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	recs, err := h.Store.ListStoreOpportunities(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list opportunities", err)
		return
	}

	dtos := make([]OpportunityDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toOpportunityDTO(rec.RunID, rec.Opportunity)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INPUT DATA HANDLERS
// =============================================================================

// LoadDataset replaces the input tables wholesale.
func (h *Handler) LoadDataset(w http.ResponseWriter, r *http.Request) {
	var req LoadDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ds, err := parseDataset(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dataset", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.SaveAssignments(ctx, ds.Assignments); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assignments", err)
		return
	}
	if err := h.Store.SaveSalesFacts(ctx, ds.Sales); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save sales", err)
		return
	}
	if err := h.Store.SavePriceFacts(ctx, ds.Prices); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save prices", err)
		return
	}
	if err := h.Store.SaveMarginRates(ctx, ds.Margins); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save margins", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"assignments": len(ds.Assignments),
		"sales":       len(ds.Sales),
		"prices":      len(ds.Prices),
		"margins":     len(ds.Margins),
	})
}

// ResetDatabase clears every table. Dev only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDataset(req LoadDatasetRequest) (assortment.Dataset, error) {
	var ds assortment.Dataset

	for _, a := range req.Assignments {
		if a.StoreID == "" || a.ClusterID == "" {
			return ds, fmt.Errorf("assignment requires store_id and cluster_id")
		}
		ds.Assignments = append(ds.Assignments, assortment.ClusterAssignment{
			StoreID:   assortment.StoreID(a.StoreID),
			ClusterID: assortment.ClusterID(a.ClusterID),
		})
	}

	for _, s := range req.Sales {
		sales, err := parseMoney(s.Sales, "sales")
		if err != nil {
			return ds, err
		}
		fact := assortment.SalesFact{
			StoreID:    assortment.StoreID(s.StoreID),
			FeatureKey: assortment.FeatureKey(s.FeatureKey),
			Sales:      sales,
			Quantity:   s.Quantity,
		}
		if s.UnitPrice != nil {
			price, err := parseMoney(*s.UnitPrice, "unit_price")
			if err != nil {
				return ds, err
			}
			fact.UnitPrice = &price
		}
		ds.Sales = append(ds.Sales, fact)
	}

	for _, p := range req.Prices {
		price, err := parseMoney(p.UnitPrice, "unit_price")
		if err != nil {
			return ds, err
		}
		ds.Prices = append(ds.Prices, assortment.PriceFact{
			StoreID:    assortment.StoreID(p.StoreID),
			FeatureKey: assortment.FeatureKey(p.FeatureKey),
			UnitPrice:  price,
		})
	}

	for _, m := range req.Margins {
		rate, err := decimal.NewFromString(m.Rate)
		if err != nil {
			return ds, fmt.Errorf("invalid rate %q: %w", m.Rate, err)
		}
		ds.Margins = append(ds.Margins, assortment.MarginRate{
			StoreID:    assortment.StoreID(m.StoreID),
			FeatureKey: assortment.FeatureKey(m.FeatureKey),
			Rate:       rate,
		})
	}

	return ds, nil
}

func parseMoney(s, field string) (assortment.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return assortment.Money{}, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return assortment.Money{Value: d}, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

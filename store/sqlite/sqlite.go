/*
Package sqlite provides the SQLite-backed dataset and results store.

PURPOSE:
  Persists the four input tables the pipeline consumes and the two output
  tables it produces, plus a run manifest. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  cluster_assignments: store -> cluster (required input)
  sales_facts:         per-store, per-feature sales (required input)
  price_facts:         price reference table (optional input)
  margin_rates:        margin reference table (optional input)
  opportunity_details: one row per approved opportunity (output)
  store_summaries:     one row per in-scope store (output)
  runs:                manifest of completed pipeline runs

NO PARTIAL OUTPUT:
  SaveResult writes both output tables and the manifest row inside one
  database transaction. Schema validation happens upstream, before this
  package is ever handed a result; a failed run leaves no rows behind.

PRECISION:
  Currency columns are stored as TEXT holding decimal strings, never
  REAL. Round-tripping through float64 would corrupt the exact
  cardinality downstream consumers depend on.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/assortment.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ds, err := store.LoadDataset(ctx)
  result, err := pipeline.Run(ctx, ds)
  run, err := store.SaveResult(ctx, cfg.Granularity, result)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/assortment-engine/assortment"
)

// Store implements dataset loading and result persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Run is one row of the run manifest.
type Run struct {
	ID          string
	Granularity string
	Approved    int
	Summary     string
	CreatedAt   time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; a second pooled
	// connection would see empty tables.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Input: peer-group membership
	CREATE TABLE IF NOT EXISTS cluster_assignments (
		store_id TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		PRIMARY KEY (store_id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_cluster
		ON cluster_assignments(cluster_id);

	-- Input: sales per store and feature over the analysis period
	CREATE TABLE IF NOT EXISTS sales_facts (
		store_id TEXT NOT NULL,
		feature_key TEXT NOT NULL,
		sales_amount TEXT NOT NULL,
		unit_price TEXT,
		quantity INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_sales_store_feature
		ON sales_facts(store_id, feature_key);

	-- Optional input: price reference table
	CREATE TABLE IF NOT EXISTS price_facts (
		store_id TEXT NOT NULL,
		feature_key TEXT NOT NULL,
		unit_price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_prices_store_feature
		ON price_facts(store_id, feature_key);

	-- Optional input: margin reference table (empty feature_key = store-wide)
	CREATE TABLE IF NOT EXISTS margin_rates (
		store_id TEXT NOT NULL,
		feature_key TEXT NOT NULL DEFAULT '',
		margin_rate TEXT NOT NULL
	);

	-- Output: one row per approved opportunity
	CREATE TABLE IF NOT EXISTS opportunity_details (
		run_id TEXT NOT NULL,
		store_id TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		feature_key TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price TEXT NOT NULL,
		price_source TEXT NOT NULL,
		predicted_sellthrough REAL NOT NULL,
		roi TEXT NOT NULL,
		margin_uplift TEXT NOT NULL,
		investment_required TEXT NOT NULL,
		retail_value TEXT NOT NULL,
		approval_reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_opportunities_run
		ON opportunity_details(run_id);
	CREATE INDEX IF NOT EXISTS idx_opportunities_store
		ON opportunity_details(store_id);

	-- Output: exactly one row per in-scope store
	CREATE TABLE IF NOT EXISTS store_summaries (
		run_id TEXT NOT NULL,
		store_id TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		opportunity_count INTEGER NOT NULL,
		total_quantity INTEGER NOT NULL CHECK (total_quantity >= 0),
		total_investment TEXT NOT NULL,
		total_retail_value TEXT NOT NULL,
		avg_sellthrough_improvement REAL NOT NULL,
		approved_count INTEGER NOT NULL,
		rule_flag INTEGER NOT NULL,
		UNIQUE (run_id, store_id)
	);

	-- Run manifest
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		granularity TEXT NOT NULL,
		approved_count INTEGER NOT NULL,
		diagnostics TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INPUT TABLES
// =============================================================================

// SaveAssignments replaces the cluster assignment table.
func (s *Store) SaveAssignments(ctx context.Context, rows []assortment.ClusterAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cluster_assignments`); err != nil {
			return err
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO cluster_assignments (store_id, cluster_id) VALUES (?, ?)`,
				string(r.StoreID), string(r.ClusterID))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveSalesFacts replaces the sales fact table.
func (s *Store) SaveSalesFacts(ctx context.Context, rows []assortment.SalesFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sales_facts`); err != nil {
			return err
		}
		for _, r := range rows {
			var price any
			if r.UnitPrice != nil {
				price = r.UnitPrice.Value.String()
			}
			var qty any
			if r.Quantity != nil {
				qty = *r.Quantity
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO sales_facts (store_id, feature_key, sales_amount, unit_price, quantity)
				 VALUES (?, ?, ?, ?, ?)`,
				string(r.StoreID), string(r.FeatureKey), r.Sales.Value.String(), price, qty)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SavePriceFacts replaces the price reference table.
func (s *Store) SavePriceFacts(ctx context.Context, rows []assortment.PriceFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM price_facts`); err != nil {
			return err
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO price_facts (store_id, feature_key, unit_price) VALUES (?, ?, ?)`,
				string(r.StoreID), string(r.FeatureKey), r.UnitPrice.Value.String())
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveMarginRates replaces the margin reference table.
func (s *Store) SaveMarginRates(ctx context.Context, rows []assortment.MarginRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM margin_rates`); err != nil {
			return err
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO margin_rates (store_id, feature_key, margin_rate) VALUES (?, ?, ?)`,
				string(r.StoreID), string(r.FeatureKey), r.Rate.String())
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadDataset reads every input table into one typed Dataset.
func (s *Store) LoadDataset(ctx context.Context) (assortment.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ds assortment.Dataset

	rows, err := s.db.QueryContext(ctx, `SELECT store_id, cluster_id FROM cluster_assignments ORDER BY store_id`)
	if err != nil {
		return ds, fmt.Errorf("load cluster_assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sid, cid string
		if err := rows.Scan(&sid, &cid); err != nil {
			return ds, err
		}
		ds.Assignments = append(ds.Assignments, assortment.ClusterAssignment{
			StoreID:   assortment.StoreID(sid),
			ClusterID: assortment.ClusterID(cid),
		})
	}
	if err := rows.Err(); err != nil {
		return ds, err
	}

	if ds.Sales, err = s.loadSales(ctx); err != nil {
		return ds, err
	}
	if ds.Prices, err = s.loadPrices(ctx); err != nil {
		return ds, err
	}
	if ds.Margins, err = s.loadMargins(ctx); err != nil {
		return ds, err
	}
	return ds, nil
}

func (s *Store) loadSales(ctx context.Context) ([]assortment.SalesFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id, feature_key, sales_amount, unit_price, quantity FROM sales_facts ORDER BY store_id, feature_key`)
	if err != nil {
		return nil, fmt.Errorf("load sales_facts: %w", err)
	}
	defer rows.Close()

	var out []assortment.SalesFact
	for rows.Next() {
		var f assortment.SalesFact
		var sid, fk, amount string
		var price sql.NullString
		var qty sql.NullInt64
		if err := rows.Scan(&sid, &fk, &amount, &price, &qty); err != nil {
			return nil, err
		}
		f.StoreID, f.FeatureKey = assortment.StoreID(sid), assortment.FeatureKey(fk)
		f.Sales = assortment.MustParseMoney(amount)
		if price.Valid {
			p := assortment.MustParseMoney(price.String)
			f.UnitPrice = &p
		}
		if qty.Valid {
			q := int(qty.Int64)
			f.Quantity = &q
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) loadPrices(ctx context.Context) ([]assortment.PriceFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id, feature_key, unit_price FROM price_facts ORDER BY store_id, feature_key`)
	if err != nil {
		return nil, fmt.Errorf("load price_facts: %w", err)
	}
	defer rows.Close()

	var out []assortment.PriceFact
	for rows.Next() {
		var p assortment.PriceFact
		var sid, fk, price string
		if err := rows.Scan(&sid, &fk, &price); err != nil {
			return nil, err
		}
		p.StoreID, p.FeatureKey = assortment.StoreID(sid), assortment.FeatureKey(fk)
		p.UnitPrice = assortment.MustParseMoney(price)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) loadMargins(ctx context.Context) ([]assortment.MarginRate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id, feature_key, margin_rate FROM margin_rates ORDER BY store_id, feature_key`)
	if err != nil {
		return nil, fmt.Errorf("load margin_rates: %w", err)
	}
	defer rows.Close()

	var out []assortment.MarginRate
	for rows.Next() {
		var m assortment.MarginRate
		var sid, fk, rate string
		if err := rows.Scan(&sid, &fk, &rate); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("bad margin rate %q for store %s: %w", rate, sid, err)
		}
		m.StoreID, m.FeatureKey, m.Rate = assortment.StoreID(sid), assortment.FeatureKey(fk), d
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// OUTPUT TABLES
// =============================================================================

// SaveResult persists both output tables and the manifest row atomically.
// The caller has already passed the result through schema validation.
func (s *Store) SaveResult(ctx context.Context, granularity assortment.Granularity, result *assortment.Result) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{
		ID:          uuid.NewString(),
		Granularity: string(granularity),
		Approved:    result.Diagnostics.Approved,
		Summary:     result.Diagnostics.String(),
		CreatedAt:   time.Now().UTC(),
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, opp := range result.Opportunities {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO opportunity_details
				(run_id, store_id, cluster_id, feature_key, quantity, unit_price, price_source,
				 predicted_sellthrough, roi, margin_uplift, investment_required, retail_value, approval_reason)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID,
				string(opp.StoreID),
				string(opp.ClusterID),
				string(opp.FeatureKey),
				opp.Quantity,
				opp.UnitPrice.Value.String(),
				string(opp.PriceSource),
				opp.PredictedSellthrough,
				opp.ROI.String(),
				opp.MarginUplift.Value.String(),
				opp.Investment.Value.String(),
				opp.RetailValue().Value.String(),
				opp.ApprovalReason,
			)
			if err != nil {
				return fmt.Errorf("insert opportunity_details: %w", err)
			}
		}

		for _, sum := range result.Summaries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO store_summaries
				(run_id, store_id, cluster_id, opportunity_count, total_quantity, total_investment,
				 total_retail_value, avg_sellthrough_improvement, approved_count, rule_flag)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID,
				string(sum.StoreID),
				string(sum.ClusterID),
				sum.OpportunityCount,
				sum.TotalQuantity,
				sum.TotalInvestment.Value.String(),
				sum.TotalRetailValue.Value.String(),
				sum.AvgSellthroughImprovement,
				sum.ApprovedCount,
				sum.RuleFlag,
			)
			if err != nil {
				return fmt.Errorf("insert store_summaries: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, granularity, approved_count, diagnostics, created_at) VALUES (?, ?, ?, ?, ?)`,
			run.ID, run.Granularity, run.Approved, run.Summary, run.CreatedAt.Format(time.RFC3339))
		return err
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the manifest, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, granularity, approved_count, diagnostics, created_at FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one manifest row, or nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, granularity, approved_count, diagnostics, created_at FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var created string
	if err := row.Scan(&r.ID, &r.Granularity, &r.Approved, &r.Summary, &created); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return Run{}, fmt.Errorf("bad run timestamp %q: %w", created, err)
	}
	r.CreatedAt = t
	return r, nil
}

// ListOpportunities returns the opportunity detail rows for a run,
// ordered by (store, feature).
func (s *Store) ListOpportunities(ctx context.Context, runID string) ([]assortment.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, store_id, cluster_id, feature_key, quantity, unit_price, price_source,
		       predicted_sellthrough, roi, margin_uplift, investment_required, approval_reason
		FROM opportunity_details WHERE run_id = ? ORDER BY store_id, feature_key`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs, err := scanOpportunities(rows)
	if err != nil {
		return nil, err
	}
	out := make([]assortment.Opportunity, len(recs))
	for i, rec := range recs {
		out[i] = rec.Opportunity
	}
	return out, nil
}

// StoreOpportunity pairs a detail row with the run that produced it.
type StoreOpportunity struct {
	RunID string
	assortment.Opportunity
}

// ListStoreOpportunities returns every persisted detail row for one store
// across all runs, newest run first.
func (s *Store) ListStoreOpportunities(ctx context.Context, storeID string) ([]StoreOpportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.run_id, d.store_id, d.cluster_id, d.feature_key, d.quantity, d.unit_price, d.price_source,
		       d.predicted_sellthrough, d.roi, d.margin_uplift, d.investment_required, d.approval_reason
		FROM opportunity_details d
		JOIN runs r ON r.id = d.run_id
		WHERE d.store_id = ?
		ORDER BY r.created_at DESC, d.run_id, d.feature_key`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

func scanOpportunities(rows *sql.Rows) ([]StoreOpportunity, error) {
	var out []StoreOpportunity
	for rows.Next() {
		var rec StoreOpportunity
		var sid, cid, fk, price, source, roi, uplift, investment string
		if err := rows.Scan(&rec.RunID, &sid, &cid, &fk, &rec.Quantity, &price, &source,
			&rec.PredictedSellthrough, &roi, &uplift, &investment, &rec.ApprovalReason); err != nil {
			return nil, err
		}
		rec.StoreID = assortment.StoreID(sid)
		rec.ClusterID = assortment.ClusterID(cid)
		rec.FeatureKey = assortment.FeatureKey(fk)
		rec.UnitPrice = assortment.MustParseMoney(price)
		rec.PriceSource = assortment.PriceSource(source)
		rec.ROI, _ = decimal.NewFromString(roi)
		rec.MarginUplift = assortment.MustParseMoney(uplift)
		rec.Investment = assortment.MustParseMoney(investment)
		rec.Approved = true
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListSummaries returns the store summary rows for a run, ordered by store.
func (s *Store) ListSummaries(ctx context.Context, runID string) ([]assortment.StoreSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, cluster_id, opportunity_count, total_quantity, total_investment,
		       total_retail_value, avg_sellthrough_improvement, approved_count, rule_flag
		FROM store_summaries WHERE run_id = ? ORDER BY store_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assortment.StoreSummary
	for rows.Next() {
		var sum assortment.StoreSummary
		var sid, cid, investment, retail string
		if err := rows.Scan(&sid, &cid, &sum.OpportunityCount, &sum.TotalQuantity, &investment,
			&retail, &sum.AvgSellthroughImprovement, &sum.ApprovedCount, &sum.RuleFlag); err != nil {
			return nil, err
		}
		sum.StoreID = assortment.StoreID(sid)
		sum.ClusterID = assortment.ClusterID(cid)
		sum.TotalInvestment = assortment.MustParseMoney(investment)
		sum.TotalRetailValue = assortment.MustParseMoney(retail)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Reset clears every table. Dev/test only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"cluster_assignments", "sales_facts", "price_facts", "margin_rates",
			"opportunity_details", "store_summaries", "runs",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

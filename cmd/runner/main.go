/*
main.go - Batch runner entry point

PURPOSE:
  Runs the opportunity pipeline once against a SQLite dataset and
  persists the output tables. Intended for cron-style scheduling; the
  HTTP server is not required.

FLOW:
  1. Load YAML runner configuration
  2. Resolve the pipeline thresholds (JSON document, or granularity
     defaults)
  3. Load the input tables from SQLite
  4. Run the pipeline
  5. Persist both output tables and a manifest row
  6. Print the per-stage diagnostics as a table

COMMAND-LINE FLAGS:
  -config   YAML runner config path (optional; defaults apply)
  -db       Override the database path from the config

EXAMPLES:
  ./runner -config=./runner.yaml
  ./runner -db=./assortment.db

SEE ALSO:
  - factory/runner.go: YAML configuration
  - assortment/pipeline.go: The batch itself
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/warp/assortment-engine/assortment"
	"github.com/warp/assortment-engine/factory"
	"github.com/warp/assortment-engine/store/sqlite"
	"github.com/warp/assortment-engine/validator"
)

func main() {
	configPath := flag.String("config", "", "YAML runner config path")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	runnerCfg := factory.DefaultRunnerConfig()
	if *configPath != "" {
		var err error
		runnerCfg, err = factory.LoadRunnerConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load runner config: %v", err)
		}
	}
	if *dbPath != "" {
		runnerCfg.Database = *dbPath
	}

	cfg, err := resolvePipelineConfig(runnerCfg)
	if err != nil {
		log.Fatalf("Failed to resolve pipeline config: %v", err)
	}

	store, err := sqlite.New(runnerCfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	var v assortment.SellthroughValidator
	if runnerCfg.ValidatorURL != "" {
		v = validator.NewClient(runnerCfg.ValidatorURL,
			validator.WithTimeout(runnerCfg.ValidatorTimeout.Duration))
	}

	ctx := context.Background()

	ds, err := store.LoadDataset(ctx)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	result, err := assortment.NewPipeline(cfg, v).Run(ctx, ds)
	if err != nil {
		log.Fatalf("Run aborted: %v", err)
	}

	run, err := store.SaveResult(ctx, cfg.Granularity, result)
	if err != nil {
		log.Fatalf("Failed to persist run: %v", err)
	}

	fmt.Printf("Run %s complete (%s granularity)\n\n", run.ID, run.Granularity)
	printDiagnostics(result.Diagnostics)
}

// resolvePipelineConfig layers the optional JSON threshold document on
// top of the granularity defaults.
func resolvePipelineConfig(runnerCfg factory.RunnerConfig) (assortment.Config, error) {
	f := factory.NewConfigFactory()

	if runnerCfg.ConfigFile != "" {
		doc, err := os.ReadFile(runnerCfg.ConfigFile)
		if err != nil {
			return assortment.Config{}, fmt.Errorf("read threshold document: %w", err)
		}
		return f.ParseConfig(string(doc))
	}

	cfg, err := f.FromJSON(factory.ConfigJSON{Granularity: runnerCfg.Granularity})
	if err != nil {
		return assortment.Config{}, err
	}
	cfg.ProfitabilityMode = runnerCfg.Profitability
	return cfg, nil
}

func printDiagnostics(d assortment.Diagnostics) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Stage", "Count"})
	t.AppendRows([]table.Row{
		{"Clusters analyzed", d.ClustersAnalyzed},
		{"Features analyzed", d.FeaturesAnalyzed},
		{"Well-selling features", d.WellSellingFeatures},
		{"Candidates scanned", d.CandidatesScanned},
		{"Missing-price drops", d.MissingPriceDrops},
	})
	reasons := make([]string, 0, len(d.GateRejections))
	for reason := range d.GateRejections {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		t.AppendRow(table.Row{"Gate: " + reason, d.GateRejections[reason]})
	}
	t.AppendRow(table.Row{"Profitability drops", d.ProfitabilityDrops})
	t.AppendFooter(table.Row{"Approved", d.Approved})
	t.SetStyle(table.StyleLight)
	t.Render()
}

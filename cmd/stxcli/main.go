// Command stxcli runs one screening job against the core directly (no HTTP
// round trip), for operators or CI to invoke against a TLE file on disk.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/celeralabs/stx-orbital/internal/catalog"
	"github.com/celeralabs/stx-orbital/internal/config"
	"github.com/celeralabs/stx-orbital/internal/jobs"
	"github.com/celeralabs/stx-orbital/internal/narrative"
	"github.com/celeralabs/stx-orbital/internal/pipeline"
	"github.com/celeralabs/stx-orbital/internal/report"
	"github.com/celeralabs/stx-orbital/internal/screener"
	"github.com/celeralabs/stx-orbital/internal/spacetrack"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON configuration overrides")
	tleFile := flag.String("tle-file", "", "Path to a TLE upload file (name/line1/line2 triples)")
	suppressGreen := flag.Bool("suppress-green", false, "Discard GREEN results")
	catalogLimit := flag.Int("catalog-limit", 0, "Max catalog candidates to screen (0 = configured default)")
	reportDir := flag.String("report-dir", "./reports", "Directory summary PDFs are written to")
	flag.Parse()

	if *tleFile == "" {
		log.Fatal("-tle-file is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	fileBytes, err := os.ReadFile(*tleFile)
	if err != nil {
		log.Fatalf("reading %s: %v", *tleFile, err)
	}

	stClient := spacetrack.New(cfg.SpacetrackUser, cfg.SpacetrackPass)
	cat := catalog.New(stClient, cfg.CatalogTTL)

	renderer, err := report.NewLocalRenderer(*reportDir)
	if err != nil {
		log.Fatalf("setting up report renderer: %v", err)
	}

	var narrativeGen narrative.Generator
	if cfg.HasNarrativeCredentials() {
		narrativeGen = narrative.NewHTTPGenerator(cfg.XAIAPIKey)
	}

	limit := *catalogLimit
	if limit == 0 {
		limit = cfg.DefaultCatalogLimit
	}

	deps := jobs.Dependencies{
		Catalog:          cat,
		SpacetrackClient: stClient,
		NarrativeGen:     narrativeGen,
		Renderer:         renderer,
		PipelineParams: pipeline.Params{
			Stage1AltMarginKm:  cfg.Stage1AltMarginKm,
			Stage1IncMarginDeg: cfg.Stage1IncMarginDeg,
			Stage2HorizonDays:  cfg.Stage2HorizonDays,
			Stage2Grid:         cfg.Stage2Grid,
			Stage2ThresholdKm:  cfg.Stage2ThresholdKm,
		},
		ScreenerParams: screener.Params{
			HorizonDays:   cfg.ScreenerHorizonDays,
			Grid:          cfg.ScreenerGrid,
			SuppressGreen: *suppressGreen,
		},
		NarrativeTimeout:    cfg.ExternalCallTimeout,
		ExternalCallTimeout: cfg.ExternalCallTimeout,
	}
	manager := jobs.NewManager(deps, cfg.MaxConcurrentJobs)

	ctx := context.Background()
	id, err := manager.Submit(ctx, fileBytes, *suppressGreen, limit)
	if err != nil {
		log.Fatalf("submitting job: %v", err)
	}

	for {
		job, ok := manager.Status(id)
		if !ok {
			log.Fatalf("job %s vanished", id)
		}
		switch job.Status {
		case jobs.Success, jobs.AllClear, jobs.Failed:
			printResult(job)
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func printResult(job jobs.Job) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	out := map[string]interface{}{
		"job_id": job.ID.String(),
		"status": string(job.Status),
	}
	if job.Err != nil {
		out["error"] = job.Err.Error()
	}
	if job.Result != nil {
		out["risk_level"] = string(job.Result.RiskLevel)
		out["decision"] = job.Result.Decision
		out["threat_count"] = len(job.Result.Threats)
		out["pdf_filename"] = job.Result.PDFFilename
	}
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encoding result: %v", err)
	}
	if job.Status == jobs.Failed {
		os.Exit(1)
	}
}

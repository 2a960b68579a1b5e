// Command stxserver runs the conjunction screening HTTP service.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/celeralabs/stx-orbital/internal/catalog"
	"github.com/celeralabs/stx-orbital/internal/config"
	"github.com/celeralabs/stx-orbital/internal/httpapi"
	"github.com/celeralabs/stx-orbital/internal/jobs"
	"github.com/celeralabs/stx-orbital/internal/narrative"
	"github.com/celeralabs/stx-orbital/internal/pipeline"
	"github.com/celeralabs/stx-orbital/internal/report"
	"github.com/celeralabs/stx-orbital/internal/screener"
	"github.com/celeralabs/stx-orbital/internal/spacetrack"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON configuration overrides")
	listen := flag.String("listen", "", "Address to listen on (overrides PORT env)")
	reportDir := flag.String("report-dir", "./reports", "Directory summary PDFs are written to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	listenAddr := *listen
	if listenAddr == "" {
		listenAddr = ":" + cfg.Port
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
			HorizonDays: cfg.ScreenerHorizonDays,
			Grid:        cfg.ScreenerGrid,
		},
		NarrativeTimeout:    cfg.ExternalCallTimeout,
		ExternalCallTimeout: cfg.ExternalCallTimeout,
	}
	manager := jobs.NewManager(deps, cfg.MaxConcurrentJobs)

	server := httpapi.NewServer(manager, cfg.AuthToken, renderer.RootDir(), cfg.DefaultCatalogLimit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("stxserver listening on %s", listenAddr)
	if !cfg.HasCatalogCredentials() {
		log.Printf("no SPACETRACK_USER/SPACETRACK_PASS set; serving fleet-mode uploads only")
	}
	if !cfg.HasNarrativeCredentials() {
		log.Printf("no XAI_API_KEY set; narrative generation will use the fallback string")
	}

	if err := server.Start(ctx, listenAddr); err != nil {
		if err != context.Canceled {
			log.Fatalf("http server error: %v", err)
		}
	}
}

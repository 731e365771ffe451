// Parameter Search CLI
// Runs a grid or genetic search over a strategy's parameter space and
// reports the best configurations found
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/internal/objective"
	"github.com/ajitpratap0/paramsearch/internal/simulator"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	configPath = flag.String("config", "", "Path to config file (default: ./config.yaml or ./configs/config.yaml)")

	// Search overrides
	mode      = flag.String("mode", "", "Search mode (grid, genetic)")
	spaceFile = flag.String("space", "", "Parameter space definition file")
	costName  = flag.String("objective", "", "Objective to maximize (see -list)")
	simName   = flag.String("simulator", "", "Simulator name (see -list)")
	dataFile  = flag.String("data", "", "CSV file of closing prices for the sma_crossover simulator")
	threads   = flag.Int("threads", 0, "Worker threads")
	seed      = flag.Int64("seed", -1, "Search seed (0 = time based)")

	// Output
	reportFile = flag.String("report", "", "Write the best strategies to this YAML or JSON file")
	topN       = flag.Int("top", 0, "Number of strategies to print and export")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")

	skipConnectivity = flag.Bool("skip-connectivity", false, "Skip backend connectivity checks at startup")
	list             = flag.Bool("list", false, "List simulators, objectives and comparators, then exit")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	flag.Parse()

	if *list {
		printRegistries()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)

	config.InitLoggerWithOutput(cfg.App.LogLevel, cfg.App.LogFormat, os.Stderr)

	log.Info().
		Str("version", config.GetVersion()).
		Str("mode", cfg.Search.Mode).
		Str("simulator", cfg.Simulator.Name).
		Str("objective", cfg.Search.Objective).
		Msg("Starting parameter search")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	validatorOpts := config.DefaultValidatorOptions()
	validatorOpts.VerifyConnectivity = !*skipConnectivity
	if err := config.NewValidator(cfg, validatorOpts).ValidateStartup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	// Set up signal handling: the first signal stops the search gracefully,
	// partial results are still reported
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up search")
	}

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal, stopping search")
		app.stop()
	}()

	runErr := app.run(ctx, os.Stdout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	app.shutdown(shutdownCtx)

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Search failed")
	}
}

// applyFlags overrides configuration with explicitly set flags
func applyFlags(cfg *config.Config) {
	if *mode != "" {
		cfg.Search.Mode = *mode
	}
	if *spaceFile != "" {
		cfg.Search.SpaceFile = *spaceFile
	}
	if *costName != "" {
		cfg.Search.Objective = *costName
	}
	if *simName != "" {
		cfg.Simulator.Name = *simName
	}
	if *dataFile != "" {
		cfg.Simulator.DataFile = *dataFile
	}
	if *threads > 0 {
		cfg.Search.Threads = *threads
	}
	if *seed >= 0 {
		cfg.Search.Seed = *seed
	}
	if *reportFile != "" {
		cfg.Search.ReportFile = *reportFile
	}
	if *topN > 0 {
		cfg.Search.TopN = *topN
	}
	if *verbose {
		cfg.App.LogLevel = "debug"
	}
}

func printRegistries() {
	fmt.Printf("Simulators:  %s\n", strings.Join(simulator.DefaultRegistry().Names(), ", "))
	fmt.Printf("Objectives:  %s (or %s<name>)\n", strings.Join(objective.CostNames(), ", "), objective.MetricPrefix)
	fmt.Printf("Comparators: %s\n", strings.Join(objective.ComparatorNames(), ", "))
}

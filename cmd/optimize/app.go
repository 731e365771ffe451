package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/internal/api"
	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/internal/dedup"
	"github.com/ajitpratap0/paramsearch/internal/events"
	"github.com/ajitpratap0/paramsearch/internal/metrics"
	"github.com/ajitpratap0/paramsearch/internal/objective"
	"github.com/ajitpratap0/paramsearch/internal/report"
	"github.com/ajitpratap0/paramsearch/internal/simulator"
	"github.com/ajitpratap0/paramsearch/internal/spacefile"
	"github.com/ajitpratap0/paramsearch/internal/store"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// reportMetrics are the metric columns printed next to each strategy
var reportMetrics = []string{
	objective.MetricTotalReturnPct,
	objective.MetricSharpeRatio,
	objective.MetricMaxDrawdownPct,
	objective.MetricTotalTrades,
	objective.MetricWinRate,
	objective.MetricScore,
}

// app owns every component of one optimizer run
type app struct {
	cfg *config.Config

	definition *spacefile.Definition
	space      *paramspace.Space
	cost       selector.CostFunc
	sim        search.Simulator
	seen       search.SeenSet

	observers search.Observers
	tracker   *api.Tracker
	hub       *api.Hub

	redisClient   *redis.Client
	natsConn      *nats.Conn
	resultStore   store.Store
	metricsServer *metrics.Server
	apiServer     *api.Server
	updater       *metrics.Updater

	mu      sync.Mutex
	current search.Search
	stopped bool
}

// newApp loads the space, resolves the named components and connects the
// enabled backends
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, tracker: api.NewTracker()}

	def, err := spacefile.Load(cfg.Search.SpaceFile)
	if err != nil {
		return nil, err
	}
	a.definition = def
	if a.space, err = def.Space(); err != nil {
		return nil, fmt.Errorf("failed to build parameter space: %w", err)
	}

	if a.cost, err = objective.Cost(cfg.Search.Objective); err != nil {
		return nil, err
	}
	if a.sim, err = simulator.FromConfig(simulator.DefaultRegistry(), cfg.Simulator); err != nil {
		return nil, err
	}
	// Validate selector settings before anything is connected
	if _, err := newSelector(cfg.Selector, a.space); err != nil {
		return nil, err
	}

	if err := a.connect(ctx); err != nil {
		a.shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Monitoring.EnableMetrics {
		a.observers = append(a.observers, metrics.NewObserver())
		a.metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
		if err := a.metricsServer.Start(); err != nil {
			return err
		}
	}

	if cfg.Redis.Enabled {
		a.redisClient = dedup.NewClient(cfg.Redis)
		a.seen = dedup.NewRedisSeenSet(a.redisClient, cfg.Redis.KeyPrefix, a.dedupNamespace(), cfg.Redis.GetTTL())
	} else {
		a.seen = search.NewMemorySeenSet()
	}
	if cfg.Monitoring.EnableMetrics {
		a.seen = metrics.NewInstrumentedSeenSet(a.seen)
	}

	if cfg.NATS.Enabled {
		nc, err := events.Connect(cfg.NATS)
		if err != nil {
			return err
		}
		a.natsConn = nc
		a.observers = append(a.observers, events.NewPublisher(nc, cfg.NATS.SubjectPrefix))
	}

	if cfg.Store.Backend != "" && cfg.Store.Backend != "none" {
		st, err := store.New(ctx, cfg.Store)
		if err != nil {
			return err
		}
		a.resultStore = st

		if pg, ok := st.(*store.PostgresStore); ok && cfg.Monitoring.EnableMetrics {
			a.updater = metrics.NewUpdater(pg, 15*time.Second)
			go a.updater.Start(ctx)
		}
	}

	if cfg.API.Enabled {
		a.hub = api.NewHub()
		go a.hub.Run()
		a.observers = append(a.observers, a.hub)

		a.apiServer = api.NewServer(api.Config{
			Host:    cfg.API.Host,
			Port:    cfg.API.Port,
			Tracker: a.tracker,
			Store:   a.resultStore,
			Hub:     a.hub,
		})
		go func() {
			if err := a.apiServer.Start(); err != nil {
				log.Error().Err(err).Msg("API server error")
			}
		}()
	}

	return nil
}

// dedupNamespace scopes the shared seen-set to one simulator, objective and
// space file, so cooperating processes split the same grid
func (a *app) dedupNamespace() string {
	base := strings.TrimSuffix(filepath.Base(a.cfg.Search.SpaceFile), filepath.Ext(a.cfg.Search.SpaceFile))
	return strings.Join([]string{a.cfg.Simulator.Name, a.cfg.Search.Objective, base}, ":")
}

// start launches the configured search
func (a *app) start(ctx context.Context) (search.Search, error) {
	sel, err := newSelector(a.cfg.Selector, a.space)
	if err != nil {
		return nil, err
	}

	switch search.Mode(a.cfg.Search.Mode) {
	case search.ModeGrid:
		enum, err := a.definition.Enumerator()
		if err != nil {
			return nil, fmt.Errorf("failed to build grid: %w", err)
		}
		return search.RunGridSearch(ctx, enum, sel, a.sim, a.cost, search.GridConfig{
			Threads:  a.cfg.Search.Threads,
			Seen:     a.seen,
			Observer: a.observers,
		})

	case search.ModeGenetic:
		gen := paramspace.NewGenerator(a.space, a.cfg.Search.Seed)
		return search.RunGeneticSearch(ctx, gen, sel, a.sim, a.cost, search.GeneticConfig{
			PopulationSize:    a.cfg.Search.PopulationSize,
			MaxGenerations:    a.cfg.Search.MaxGenerations,
			BestFraction:      a.cfg.Search.BestFraction,
			CrossoverFraction: a.cfg.Search.CrossoverFraction,
			Threads:           a.cfg.Search.Threads,
			Observer:          a.observers,
		})

	default:
		return nil, fmt.Errorf("unknown search mode %q", a.cfg.Search.Mode)
	}
}

// run executes the search to completion, persists it and writes the report
func (a *app) run(ctx context.Context, out io.Writer) error {
	startedAt := time.Now()

	// A stop requested before the search exists keeps it from dispatching
	// anything
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	if a.stopped {
		cancel()
	}
	a.mu.Unlock()

	s, err := a.start(searchCtx)
	if err != nil {
		return err
	}
	a.tracker.Track(s, a.cfg.Simulator.Name, a.cfg.Search.Objective)

	a.mu.Lock()
	a.current = s
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		s.Stop()
	}

	sel := s.Wait()
	run := store.NewRun(s, a.cfg.Simulator.Name, a.cfg.Search.Objective, startedAt)
	snapshot := sel.Snapshot()

	log.Info().
		Str("search_id", run.ID).
		Str("status", run.Status).
		Int64("done", run.Done).
		Int("resident", len(snapshot)).
		Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Search complete")

	var errs []error
	if a.resultStore != nil {
		if err := a.resultStore.SaveRun(ctx, run, store.Records(run.ID, snapshot)); err != nil {
			errs = append(errs, fmt.Errorf("failed to save run: %w", err))
		} else {
			log.Info().Str("search_id", run.ID).Str("backend", a.cfg.Store.Backend).Msg("Run saved")
		}
	}

	rep := report.New(run, snapshot, a.cfg.Search.TopN)
	if err := report.WriteTable(out, rep, reportMetrics); err != nil {
		errs = append(errs, fmt.Errorf("failed to print report: %w", err))
	}
	if a.cfg.Search.ReportFile != "" {
		if err := report.WriteFile(rep, a.cfg.Search.ReportFile); err != nil {
			errs = append(errs, err)
		} else {
			log.Info().Str("path", a.cfg.Search.ReportFile).Msg("Report written")
		}
	}

	return errors.Join(errs...)
}

// stop requests the running search to stop; a search started later is
// stopped immediately
func (a *app) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	if a.current != nil {
		a.current.Stop()
	}
}

// shutdown releases every connected backend; it is safe on a partially
// connected app
func (a *app) shutdown(ctx context.Context) {
	if a.apiServer != nil {
		if err := a.apiServer.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to stop API server")
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.updater != nil {
		a.updater.Stop()
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection")
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if a.resultStore != nil {
		if err := a.resultStore.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close result store")
		}
	}
}

// newSelector builds the configured selector. Parameter distance is
// measured on space, metric distance on the listed metrics.
func newSelector(cfg config.SelectorConfig, space *paramspace.Space) (selector.Selector, error) {
	switch cfg.Kind {
	case "cost", "":
		return selector.NewTopKByCost(cfg.Capacity)

	case "comparator":
		cmp, err := objective.Comparator(cfg.Comparator)
		if err != nil {
			return nil, err
		}
		return selector.NewTopKByComparator(cfg.Capacity, cmp)

	case "cluster":
		var distance selector.DistanceFunc
		switch cfg.Distance {
		case "metrics":
			distance = selector.MetricDistance(cfg.DistanceMetrics...)
		case "parameters", "":
			distance = selector.ParameterDistance(space)
		default:
			return nil, fmt.Errorf("unknown distance %q", cfg.Distance)
		}
		return selector.NewClusterSelector(selector.ClusterConfig{
			MaxClusters:           cfg.MaxClusters,
			MaxElementsPerCluster: cfg.MaxElementsPerCluster,
			Epsilon:               cfg.Epsilon,
			Distance:              distance,
		})

	default:
		return nil, fmt.Errorf("unknown selector kind %q", cfg.Kind)
	}
}

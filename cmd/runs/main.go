// Stored results CLI
// Initializes the result store schema and lists, shows or exports the runs
// saved by the optimizer
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/internal/report"
	"github.com/ajitpratap0/paramsearch/internal/store"
)

func main() {
	command := flag.String("command", "list", "Command to run: init, list, show or export")
	configPath := flag.String("config", "", "Path to config file")
	runID := flag.String("run", "", "Run ID for show and export")
	limit := flag.Int("limit", 20, "Maximum runs to list")
	output := flag.String("output", "", "Export destination (.yaml or .json)")
	top := flag.Int("top", 0, "Strategies to show or export (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitLoggerWithOutput(cfg.App.LogLevel, cfg.App.LogFormat, os.Stderr)

	if cfg.Store.Backend == "" || cfg.Store.Backend == "none" {
		fmt.Fprintln(os.Stderr, "No result store configured (store.backend is none)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// store.New creates the schema, so init needs nothing else
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close store: %v\n", err)
		}
	}()

	opts := options{runID: *runID, limit: *limit, output: *output, top: *top}
	if err := execute(ctx, st, *command, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", *command, err)
		os.Exit(1)
	}
}

type options struct {
	runID  string
	limit  int
	output string
	top    int
}

func execute(ctx context.Context, st store.Store, command string, opts options, out io.Writer) error {
	switch command {
	case "init":
		fmt.Fprintln(out, "Result store schema is up to date")
		return nil
	case "list":
		return listRuns(ctx, st, opts.limit, out)
	case "show":
		rep, err := loadReport(ctx, st, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run %s (%s, %s) status=%s done=%d/%d\n\n", rep.SearchID, rep.Mode, rep.Simulator, rep.Status, rep.Done, rep.Total)
		return report.WriteTable(out, rep, nil)
	case "export":
		if opts.output == "" {
			return fmt.Errorf("-output is required for export")
		}
		rep, err := loadReport(ctx, st, opts)
		if err != nil {
			return err
		}
		if err := report.WriteFile(rep, opts.output); err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %d strategies to %s\n", len(rep.Strategies), opts.output)
		return nil
	default:
		return fmt.Errorf("unknown command %q (use init, list, show or export)", command)
	}
}

func listRuns(ctx context.Context, st store.Store, limit int, out io.Writer) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSIMULATOR\tOBJECTIVE\tSTATUS\tDONE\tBEST\tFINISHED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%.6g\t%s\n",
			r.ID, r.Mode, r.Simulator, r.Objective, r.Status, r.Done, r.Total, r.BestRating,
			r.FinishedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func loadReport(ctx context.Context, st store.Store, opts options) (report.Report, error) {
	if opts.runID == "" {
		return report.Report{}, fmt.Errorf("-run is required")
	}

	run, found, err := st.GetRun(ctx, opts.runID)
	if err != nil {
		return report.Report{}, err
	}
	if !found {
		return report.Report{}, fmt.Errorf("run %s not found", opts.runID)
	}

	records, err := st.ListStrategies(ctx, opts.runID)
	if err != nil {
		return report.Report{}, err
	}
	return report.FromRecords(run, records, opts.top), nil
}

// Package report exports the best strategies of a finished search as YAML
// or JSON and prints them as a console table.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/paramsearch/internal/store"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// Format specifies the output format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Report is the exported summary of one search
type Report struct {
	SchemaVersion string    `json:"schema_version" yaml:"schema_version"`
	SearchID      string    `json:"search_id" yaml:"search_id"`
	Mode          string    `json:"mode" yaml:"mode"`
	Simulator     string    `json:"simulator" yaml:"simulator"`
	Objective     string    `json:"objective" yaml:"objective"`
	Status        string    `json:"status" yaml:"status"`
	Done          int64     `json:"done" yaml:"done"`
	Total         int64     `json:"total" yaml:"total"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time `json:"finished_at" yaml:"finished_at"`
	GeneratedAt   time.Time `json:"generated_at" yaml:"generated_at"`
	Strategies    []Entry   `json:"strategies" yaml:"strategies"`
}

// Entry is one ranked strategy; Rank 1 is the best
type Entry struct {
	Rank       int                    `json:"rank" yaml:"rank"`
	Rating     *float64               `json:"rating,omitempty" yaml:"rating,omitempty"`
	Parameters map[string]interface{} `json:"parameters" yaml:"parameters"`
	SubConfigs []paramspace.Ref       `json:"sub_configs,omitempty" yaml:"sub_configs,omitempty"`
	Metrics    map[string]float64     `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// New builds a report from a run summary and its best-first strategies,
// keeping at most top entries (all when top <= 0)
func New(run store.Run, strategies []*selector.Strategy, top int) Report {
	if top > 0 && len(strategies) > top {
		strategies = strategies[:top]
	}

	r := newReport(run, len(strategies))
	for i, st := range strategies {
		r.Strategies[i] = newEntry(i+1, st.Config(), st.Rating(), st.Metrics())
	}
	return r
}

// FromRecords builds a report from a stored run, keeping at most top
// entries (all when top <= 0)
func FromRecords(run store.Run, records []store.StrategyRecord, top int) Report {
	records = slices.Clone(records)
	slices.SortFunc(records, func(a, b store.StrategyRecord) int { return a.Rank - b.Rank })
	if top > 0 && len(records) > top {
		records = records[:top]
	}

	r := newReport(run, len(records))
	for i, rec := range records {
		r.Strategies[i] = newEntry(rec.Rank, rec.Config, rec.Rating, rec.Metrics)
	}
	return r
}

func newReport(run store.Run, n int) Report {
	return Report{
		SchemaVersion: SchemaVersion,
		SearchID:      run.ID,
		Mode:          run.Mode,
		Simulator:     run.Simulator,
		Objective:     run.Objective,
		Status:        run.Status,
		Done:          run.Done,
		Total:         run.Total,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		GeneratedAt:   time.Now().UTC(),
		Strategies:    make([]Entry, n),
	}
}

func newEntry(rank int, cfg paramspace.Configuration, rating float64, metrics selector.Metrics) Entry {
	params := make(map[string]interface{}, cfg.Len())
	for k, v := range cfg.Ints() {
		params[k] = v
	}
	for k, v := range cfg.Reals() {
		params[k] = v
	}
	for k, v := range cfg.Strings() {
		params[k] = v
	}

	e := Entry{
		Rank:       rank,
		Parameters: params,
		SubConfigs: cfg.SubConfigs(),
		Metrics:    make(map[string]float64),
	}
	if isFinite(rating) {
		e.Rating = &rating
	}
	for k, v := range metrics {
		if isFinite(v) {
			e.Metrics[k] = v
		}
	}
	return e
}

// Encode serializes the report in the given format
func Encode(r Report, format Format) ([]byte, error) {
	switch format {
	case FormatYAML, "":
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# paramsearch report for search %s\n", r.SearchID)
		fmt.Fprintf(&buf, "# Schema Version: %s\n", r.SchemaVersion)
		fmt.Fprintf(&buf, "# Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(r); err != nil {
			return nil, fmt.Errorf("failed to encode report to YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return nil, fmt.Errorf("failed to close YAML encoder: %w", err)
		}
		return buf.Bytes(), nil

	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode report to JSON: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// FormatForPath picks the format from the file extension, defaulting to YAML
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// WriteFile exports the report to path, creating parent directories
func WriteFile(r Report, path string) error {
	data, err := Encode(r, FormatForPath(path))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Load reads a report written by WriteFile
func Load(path string) (Report, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return Report{}, fmt.Errorf("failed to read report file: %w", err)
	}

	var r Report
	if FormatForPath(path) == FormatJSON {
		err = json.Unmarshal(data, &r)
	} else {
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return Report{}, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	if err := Migrate(&r); err != nil {
		return Report{}, fmt.Errorf("failed to load report %s: %w", path, err)
	}
	return r, nil
}

// WriteTable prints the ranked strategies with the listed metric columns
func WriteTable(w io.Writer, r Report, metricColumns []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := append([]string{"RANK", "RATING"}, upper(metricColumns)...)
	header = append(header, "PARAMETERS")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, e := range r.Strategies {
		row := []string{fmt.Sprintf("%d", e.Rank), formatRating(e.Rating)}
		for _, m := range metricColumns {
			v, ok := e.Metrics[m]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, fmt.Sprintf("%.4g", v))
		}
		row = append(row, formatParameters(e))
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *r)
}

// formatParameters renders name=value pairs sorted by name
func formatParameters(e Entry) string {
	names := make([]string, 0, len(e.Parameters))
	for k := range e.Parameters {
		names = append(names, k)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names)+len(e.SubConfigs))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Parameters[k]))
	}
	for _, ref := range e.SubConfigs {
		parts = append(parts, fmt.Sprintf("%s=%s", ref.Name, ref.Value))
	}
	return strings.Join(parts, " ")
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

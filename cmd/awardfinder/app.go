package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/david/award-finder/internal/config"
	"github.com/david/award-finder/internal/ingest"
	"github.com/david/award-finder/internal/metrics"
	"github.com/david/award-finder/internal/report"
)

// runOutcome is what a completed run produced.
type runOutcome struct {
	RunID  string
	Window ingest.Window
	Fetch  *ingest.FetchResult
	Report *report.Report
}

// runReport executes one report run: fetch, filter, write CSV, and write the
// optional diagnostics and metrics files.
func runReport(ctx context.Context, cfg *config.Config, log *logrus.Logger, out io.Writer, now time.Time) (*runOutcome, error) {
	runID := uuid.NewString()
	entry := log.WithField("run_id", runID)

	window, err := cfg.ResolveWindow(now)
	if err != nil {
		return nil, err
	}

	m := metrics.NewRun()
	client := ingest.NewRetryClient(cfg.FetchConfig(), entry, m)
	source := ingest.NewUSAspendingSource(client, cfg.Query.BaseURL)
	pacer := ingest.NewPacer(cfg.Pacing.MinInterval, cfg.Pacing.Jitter)
	pipeline := ingest.NewPipeline(source, pacer, entry, m)

	q := cfg.BuildQuery(window)
	matcher := ingest.NewAgencyMatcher(cfg.Agency.Match)

	entry.Infof("[Run] Window (End Date): %s", window)
	entry.Infof("[Run] PSC: %s", strings.Join(q.PSCCodes, ", "))
	if patterns := matcher.Patterns(); len(patterns) > 0 {
		entry.Infof("[Run] Agency match (any of): %s", strings.Join(patterns, " | "))
	} else {
		entry.Info("[Run] Agency match: none, keeping all agencies")
	}
	if len(q.Agencies) > 0 {
		entry.Infof("[Run] Server-side agency filter: %d agencies", len(q.Agencies))
	}

	res, fetchErr := pipeline.FetchAll(ctx, q, window, cfg.MaxPages)
	if fetchErr != nil {
		var partial report.Counts
		if res != nil {
			partial.Fetched = len(res.Records)
		}
		writeDiagnostics(entry, cfg, runID, window, q, matcher, res, partial)
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			entry.Warnf("[Run] %v", err)
		}
		return nil, fetchErr
	}

	rep := report.Build(res.Records, window, matcher, report.Options{SanitizeText: cfg.Report.SanitizeText})
	m.ObserveKept(rep.Counts.Kept)

	entry.WithFields(logrus.Fields{
		"fetched":        rep.Counts.Fetched,
		"with_end_date":  rep.Counts.WithEndDate,
		"in_window":      rep.Counts.InWindow,
		"agency_matches": rep.Counts.AgencyMatches,
		"kept":           rep.Counts.Kept,
	}).Info("[Run] Filter counts")

	writeDiagnostics(entry, cfg, runID, window, q, matcher, res, rep.Counts)

	if err := rep.WriteFile(cfg.Output.CSVPath); err != nil {
		return nil, err
	}
	entry.Infof("[Run] Wrote %d rows to %s", len(rep.Rows), cfg.Output.CSVPath)

	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		return nil, err
	}

	report.RenderSummary(out, report.Summary{
		RunID:      runID,
		Window:     window,
		Pages:      res.Pages,
		StopReason: res.StopReason,
		CapReached: res.CapReached,
		Counts:     rep.Counts,
		OutputPath: cfg.Output.CSVPath,
	})

	return &runOutcome{RunID: runID, Window: window, Fetch: res, Report: rep}, nil
}

// writeDiagnostics dumps the debug document when enabled. Failures are
// logged and never fail the run.
func writeDiagnostics(log logrus.FieldLogger, cfg *config.Config, runID string, window ingest.Window, q ingest.Query, matcher *ingest.AgencyMatcher, res *ingest.FetchResult, counts report.Counts) {
	if !cfg.Debug.Sample {
		return
	}
	d := report.NewDiagnostics(runID, window, q, matcher.Patterns(), res, counts, cfg.Debug.SampleSize)
	if err := report.WriteDiagnostics(cfg.Output.DebugPath, d); err != nil {
		log.Warnf("[Run] %v", err)
		return
	}
	log.Infof("[Run] Wrote debug sample (%d rows) to %s", d.SampleCount, cfg.Output.DebugPath)
}

// healthcheck verifies the API answers before a long paginated pull.
func healthcheck(ctx context.Context, cfg *config.Config, log *logrus.Logger, out io.Writer) error {
	client := ingest.NewRetryClient(cfg.FetchConfig(), log, nil)
	source := ingest.NewUSAspendingSource(client, cfg.Query.BaseURL)

	h, err := source.ToptierAgencies(ctx)
	if err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	report.RenderHealth(out, h)
	return nil
}

package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/award-finder/internal/ingest"
)

// Summary is what gets printed at the end of a run.
type Summary struct {
	RunID      string
	Window     ingest.Window
	Pages      int
	StopReason ingest.StopReason
	CapReached bool
	Counts     Counts
	OutputPath string
}

// RenderSummary prints the run summary as a table.
func RenderSummary(w io.Writer, s Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Award report " + s.RunID)
	t.AppendHeader(table.Row{"Metric", "Value"})

	stop := string(s.StopReason)
	if s.CapReached {
		stop += " (possibly incomplete)"
	}

	t.AppendRows([]table.Row{
		{"Window (End Date)", s.Window.String()},
		{"Pages", s.Pages},
		{"Stop reason", stop},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Scanned", s.Counts.Fetched},
		{"With end date", s.Counts.WithEndDate},
		{"In window", s.Counts.InWindow},
		{"Agency matches (any date)", s.Counts.AgencyMatches},
		{"Kept", s.Counts.Kept},
	})
	if s.OutputPath != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Wrote", s.OutputPath})
	}
	t.Render()
}

// RenderProfiles prints the profile registry.
func RenderProfiles(w io.Writer, reg *ingest.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Name", "PSC", "Agency patterns", "Horizon"})
	for _, p := range reg.Profiles {
		horizon := "-"
		if p.HorizonDays > 0 {
			horizon = strconv.Itoa(p.HorizonDays) + "d"
		}
		t.AppendRow(table.Row{p.ID, p.Name, strings.Join(p.PSCCodes, ", "), strings.Join(p.AgencyPatterns, ", "), horizon})
	}
	t.Render()
}

// RenderHealth prints the outcome of a health check.
func RenderHealth(w io.Writer, h *ingest.HealthReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Check", "Value"})
	t.AppendRow(table.Row{"status_code", h.StatusCode})
	t.AppendRow(table.Row{"results_count", len(h.Agencies)})
	if len(h.Agencies) > 0 {
		first := h.Agencies[0]
		t.AppendRow(table.Row{"first_agency", first.AgencyName})
		t.AppendRow(table.Row{"first_toptier_code", first.ToptierCode})
	}
	t.Render()
}

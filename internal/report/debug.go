package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/david/award-finder/internal/ingest"
)

// Diagnostics is the companion debug document for a run: the window, the
// query that was sent, per-stage counts and a raw sample of the first page.
type Diagnostics struct {
	RunID          string               `json:"run_id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	WindowStart    string               `json:"window_start"`
	WindowEnd      string               `json:"window_end"`
	Query          ingest.SearchRequest `json:"query"`
	AgencyPatterns []string             `json:"agency_patterns"`
	Pages          int                  `json:"pages"`
	StopReason     ingest.StopReason    `json:"stop_reason"`
	CapReached     bool                 `json:"safety_cap_reached"`
	Counts         Counts               `json:"counts"`
	PageMetadata   json.RawMessage      `json:"page_metadata"`
	SampleCount    int                  `json:"sample_count"`
	SampleRows     []ingest.Record      `json:"sample_rows"`
}

// NewDiagnostics assembles the debug document. sampleSize bounds the number
// of raw first-page records included.
func NewDiagnostics(runID string, window ingest.Window, q ingest.Query, patterns []string, res *ingest.FetchResult, counts Counts, sampleSize int) Diagnostics {
	d := Diagnostics{
		RunID:          runID,
		GeneratedAt:    time.Now().UTC(),
		WindowStart:    window.StartISO(),
		WindowEnd:      window.EndISO(),
		Query:          q.Body(1),
		AgencyPatterns: append([]string{}, patterns...),
		Counts:         counts,
		PageMetadata:   json.RawMessage("{}"),
		SampleRows:     []ingest.Record{},
	}
	if res == nil {
		return d
	}

	d.Pages = res.Pages
	d.StopReason = res.StopReason
	d.CapReached = res.CapReached
	if first := res.FirstPage; first != nil {
		if len(first.RawMeta) > 0 {
			d.PageMetadata = first.RawMeta
		}
		n := min(len(first.Records), sampleSize)
		if n > 0 {
			d.SampleRows = append(d.SampleRows, first.Records[:n]...)
		}
	}
	d.SampleCount = len(d.SampleRows)
	return d
}

// WriteDiagnostics writes d as indented JSON, creating parent directories.
func WriteDiagnostics(path string, d Diagnostics) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating debug dir: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding diagnostics: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing diagnostics: %w", err)
	}
	return nil
}

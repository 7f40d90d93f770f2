package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/award-finder/internal/ingest"
)

func window(t *testing.T) ingest.Window {
	t.Helper()
	w, err := ingest.NewWindow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return w
}

func award(id, endDate, subAgency string) ingest.Record {
	fields := map[string]ingest.Value{
		"Award ID":            ingest.StringValue(id),
		"Awarding Agency":     ingest.StringValue("Department of Defense"),
		"Awarding Sub Agency": ingest.StringValue(subAgency),
		"PSC":                 ingest.ObjectValue("D310", "IT and Telecom"),
	}
	if endDate != "" {
		fields["End Date"] = ingest.StringValue(endDate)
	}
	return ingest.NewRecord(fields)
}

func TestBuild(t *testing.T) {
	records := []ingest.Record{
		award("keep-1", "2025-11-01T00:00:00", "Defense Information Systems Agency"),
		award("army-in-window", "2025-10-01", "Department of the Army"),
		award("disa-too-old", "2024-09-01", "Defense Information Systems Agency"),
		award("disa-no-date", "", "Defense Information Systems Agency"),
		award("disa-bad-date", "31/12/2025", "Defense Information Systems Agency"),
		award("keep-2", "2025-01-01", "DISA"),
	}
	matcher := ingest.NewAgencyMatcher([]string{"defense information systems agency", "disa"})

	rep := Build(records, window(t), matcher, Options{})

	assert.Equal(t, Counts{
		Fetched:       6,
		WithEndDate:   4,
		InWindow:      3,
		AgencyMatches: 5,
		Kept:          2,
	}, rep.Counts)
	assert.Equal(t, ingest.ReportFields, rep.Header)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "keep-1", rep.Rows[0][0])
	assert.Equal(t, "keep-2", rep.Rows[1][0])
	assert.Equal(t, "D310 - IT and Telecom", rep.Rows[0][7])
	assert.Equal(t, "2025-11-01T00:00:00", rep.Rows[0][10])
	for _, row := range rep.Rows {
		assert.Len(t, row, len(ingest.ReportFields))
	}
}

func TestBuildKeptImpliesInWindow(t *testing.T) {
	w := window(t)
	var records []ingest.Record
	for _, d := range []string{"2024-12-31", "2025-01-01", "2025-06-30", "2025-12-31", "2026-01-01", "garbage", ""} {
		records = append(records, award(d, d, "Anything"))
	}

	rep := Build(records, w, nil, Options{})
	require.Len(t, rep.Rows, 3)
	for _, row := range rep.Rows {
		assert.True(t, w.Contains(row[10][:10]), "kept row %s outside window", row[10])
	}
	assert.Equal(t, 7, rep.Counts.AgencyMatches, "nil matcher accepts everything")
}

func TestBuildSanitizesDescription(t *testing.T) {
	r := ingest.NewRecord(map[string]ingest.Value{
		"End Date":    ingest.StringValue("2025-05-05"),
		"Description": ingest.StringValue("<p>Zero&nbsp;trust   <b>support</b></p>"),
	})

	plain := Build([]ingest.Record{r}, window(t), nil, Options{})
	assert.Equal(t, "<p>Zero&nbsp;trust   <b>support</b></p>", plain.Rows[0][12])

	clean := Build([]ingest.Record{r}, window(t), nil, Options{SanitizeText: true})
	assert.Equal(t, "Zero trust support", clean.Rows[0][12])
}

func TestBuildEmpty(t *testing.T) {
	rep := Build(nil, window(t), nil, Options{})
	assert.Equal(t, Counts{}, rep.Counts)
	assert.NotNil(t, rep.Rows)
	assert.Empty(t, rep.Rows)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"Award ID", "Description"}, [][]string{
		{"A1", `says "hello", twice`},
		{"A2", "line\nbreak"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Award ID,Description\nA1,\"says \"\"hello\"\", twice\"\nA2,\"line\nbreak\"\n", buf.String())
}

func TestWriteFileIsIdempotent(t *testing.T) {
	records := []ingest.Record{
		award("keep-1", "2025-11-01", "DISA"),
		award("keep-2", "2025-03-01", "DISA"),
	}
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	rep := Build(records, window(t), ingest.NewAgencyMatcher([]string{"disa"}), Options{})
	require.NoError(t, rep.WriteFile(path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	rep = Build(records, window(t), ingest.NewAgencyMatcher([]string{"disa"}), Options{})
	require.NoError(t, rep.WriteFile(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	lines := strings.Split(strings.TrimSuffix(string(first), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(ingest.ReportFields, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "keep-1,"))
}

func TestDiagnostics(t *testing.T) {
	var first ingest.Page
	first.Number = 1
	first.RawMeta = json.RawMessage(`{"page":1,"hasNext":true}`)
	for i := 0; i < 7; i++ {
		first.Records = append(first.Records, award("A", "2025-06-01", "DISA"))
	}
	res := &ingest.FetchResult{
		Records:    first.Records,
		Pages:      3,
		StopReason: ingest.StopEarly,
		FirstPage:  &first,
	}

	d := NewDiagnostics("run-1", window(t), ingest.NewQuery([]string{"D310"}), []string{"disa"}, res, Counts{Fetched: 7, Kept: 7}, 5)
	assert.Equal(t, 5, d.SampleCount)
	assert.Len(t, d.SampleRows, 5)
	assert.Equal(t, 3, d.Pages)
	assert.Equal(t, ingest.StopEarly, d.StopReason)

	path := filepath.Join(t.TempDir(), "out", "debug_run.json")
	require.NoError(t, WriteDiagnostics(path, d))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, "2025-01-01", doc["window_start"])
	assert.Equal(t, "2025-12-31", doc["window_end"])
	assert.EqualValues(t, 5, doc["sample_count"])
	assert.Equal(t, map[string]any{"page": float64(1), "hasNext": true}, doc["page_metadata"])

	query, ok := doc["query"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, query["page"])

	rows, ok := doc["sample_rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 5)
	row, ok := rows[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"code": "D310", "name": "IT and Telecom"}, row["PSC"])
}

func TestDiagnosticsWithoutFetch(t *testing.T) {
	d := NewDiagnostics("run-2", window(t), ingest.NewQuery(nil), nil, nil, Counts{}, 5)
	assert.Equal(t, 0, d.SampleCount)
	assert.NotNil(t, d.SampleRows)
	assert.JSONEq(t, `{}`, string(d.PageMetadata))
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, Summary{
		RunID:      "abc",
		Window:     window(t),
		Pages:      4,
		StopReason: ingest.StopSafetyCap,
		CapReached: true,
		Counts:     Counts{Fetched: 400, WithEndDate: 399, InWindow: 120, AgencyMatches: 80, Kept: 31},
		OutputPath: "output/disa_cyber_expiring.csv",
	})

	out := buf.String()
	assert.Contains(t, out, "2025-01-01 to 2025-12-31")
	assert.Contains(t, out, "safety_cap (possibly incomplete)")
	assert.Contains(t, out, "400")
	assert.Contains(t, out, "31")
	assert.Contains(t, out, "output/disa_cyber_expiring.csv")
}

func TestRenderProfiles(t *testing.T) {
	reg, err := ingest.LoadRegistry("")
	require.NoError(t, err)

	var buf bytes.Buffer
	RenderProfiles(&buf, reg)
	assert.Contains(t, buf.String(), "disa_cyber")
	assert.Contains(t, buf.String(), "365d")
}

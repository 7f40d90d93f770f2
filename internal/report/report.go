// Package report filters fetched award records against the end-date window
// and agency patterns and writes the CSV report and run diagnostics.
package report

import (
	"github.com/david/award-finder/internal/ingest"
)

// Counts tracks how many records survive each filter stage. They are kept
// even when nothing is written, so an empty report can be told apart from a
// broken query.
type Counts struct {
	Fetched       int `json:"fetched"`
	WithEndDate   int `json:"with_end_date"`
	InWindow      int `json:"in_window"`
	AgencyMatches int `json:"agency_matches"` // over all fetched records, window ignored
	Kept          int `json:"kept"`
}

type Options struct {
	// SanitizeText strips markup from the Description column.
	SanitizeText bool
}

// Report is the filtered, normalized output of one run, in fetch order.
type Report struct {
	Header []string
	Rows   [][]string
	Counts Counts
}

var descriptionColumn = indexOf(ingest.ReportFields, "Description")

// Build keeps a record iff it has a well-formed end date inside window and
// the matcher accepts it. A nil or empty matcher accepts everything.
func Build(records []ingest.Record, window ingest.Window, matcher *ingest.AgencyMatcher, opts Options) *Report {
	rep := &Report{
		Header: append([]string(nil), ingest.ReportFields...),
		Rows:   [][]string{},
	}
	rep.Counts.Fetched = len(records)

	for _, r := range records {
		agencyOK := matcher.Match(r)
		if agencyOK {
			rep.Counts.AgencyMatches++
		}

		ed := ingest.ExtractEndDate(r)
		if ed == "" {
			continue
		}
		rep.Counts.WithEndDate++

		if !window.Contains(ed) {
			continue
		}
		rep.Counts.InWindow++

		if !agencyOK {
			continue
		}

		row := ingest.NormalizeRecord(r, ingest.ReportFields)
		if opts.SanitizeText && descriptionColumn >= 0 {
			row[descriptionColumn] = ingest.SanitizeText(row[descriptionColumn])
		}
		rep.Rows = append(rep.Rows, row)
	}

	rep.Counts.Kept = len(rep.Rows)
	return rep
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

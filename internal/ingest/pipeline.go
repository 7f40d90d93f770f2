package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/david/award-finder/internal/metrics"
)

// PageSource fetches one page of search results.
type PageSource interface {
	FetchPage(ctx context.Context, q Query, page int) (*Page, error)
}

// Pacer spaces out page requests: a minimum interval enforced by a token
// bucket plus a small random jitter so reruns do not hit the API in lockstep.
type Pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
}

// NewPacer returns a pacer. A zero minInterval and jitter disable pacing.
func NewPacer(minInterval, jitter time.Duration) *Pacer {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Pacer{
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
	}
}

// Wait blocks until the next request may be sent. Jitter is only applied
// between pages, never before the first one.
func (p *Pacer) Wait(ctx context.Context, page int) error {
	if p == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if page <= 1 || p.jitter <= 0 {
		return nil
	}

	d := time.Duration(rand.Int63n(int64(p.jitter) + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type Pipeline struct {
	Source  PageSource
	Pacer   *Pacer
	Log     logrus.FieldLogger
	Metrics *metrics.Run
}

func NewPipeline(source PageSource, pacer *Pacer, log logrus.FieldLogger, m *metrics.Run) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		Source:  source,
		Pacer:   pacer,
		Log:     log,
		Metrics: m,
	}
}

// FetchAll pulls pages 1, 2, 3, ... until one of these holds, checked in
// order after every page:
//
//  1. the page is empty
//  2. page_metadata says there is no next page
//  3. the query sorts by end date descending and the page's earliest end
//     date precedes the window start (later pages can only be older)
//  4. the next page would exceed maxPages
//
// Every fetched record is returned; filtering happens downstream so the
// unfiltered pull size stays visible. A fetch failure aborts the loop and is
// returned as a *PageError together with what was pulled so far.
func (p *Pipeline) FetchAll(ctx context.Context, q Query, window Window, maxPages int) (*FetchResult, error) {
	if maxPages < 1 {
		return nil, fmt.Errorf("max pages must be >= 1, got %d", maxPages)
	}

	result := &FetchResult{}
	earlyStop := q.SortsByEndDateDesc()
	if !earlyStop {
		p.Log.Debugf("[Pipeline] Early stop disabled: sort=%q order=%s", q.Sort, q.Order)
	}

	for page := 1; ; page++ {
		if err := p.Pacer.Wait(ctx, page); err != nil {
			return result, &PageError{Page: page, Err: err}
		}

		pg, err := p.Source.FetchPage(ctx, q, page)
		if err != nil {
			return result, &PageError{Page: page, Err: err}
		}
		result.Pages = page
		if page == 1 {
			result.FirstPage = pg
		}
		p.Metrics.ObservePage(len(pg.Records))
		p.Log.Infof("[Pipeline] Page %d: %d results (hasNext=%t)", page, len(pg.Records), pg.Meta.HasNext)

		if len(pg.Records) == 0 {
			result.StopReason = StopExhausted
			break
		}
		result.Records = append(result.Records, pg.Records...)

		if !pg.Meta.HasNext {
			result.StopReason = StopLastPage
			break
		}

		if earlyStop {
			if minDate, ok := minEndDate(pg.Records); ok && minDate < window.StartISO() {
				p.Log.Infof("[Pipeline] Stopping early: page minimum End Date %s < window start %s", minDate, window.StartISO())
				result.StopReason = StopEarly
				break
			}
		}

		if page+1 > maxPages {
			p.Log.Warnf("[Pipeline] Stopping at %d pages (max pages safety stop); results may be incomplete", maxPages)
			result.StopReason = StopSafetyCap
			result.CapReached = true
			p.Metrics.MarkSafetyCap()
			break
		}
	}

	p.Log.Infof("[Pipeline] Fetched %d records over %d pages (%s)", len(result.Records), result.Pages, result.StopReason)
	return result, nil
}

// minEndDate returns the earliest well-formed end date on a page.
func minEndDate(records []Record) (string, bool) {
	minDate := ""
	for _, r := range records {
		ed := ExtractEndDate(r)
		if ed == "" {
			continue
		}
		if minDate == "" || ed < minDate {
			minDate = ed
		}
	}
	return minDate, minDate != ""
}

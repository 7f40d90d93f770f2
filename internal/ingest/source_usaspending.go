package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.usaspending.gov"
	SearchPath     = "/api/v2/search/spending_by_award/"
	ToptierPath    = "/api/v2/references/toptier_agencies/"
)

// ContractAwardTypes are award type codes A-D: procurement contracts,
// including task and delivery orders.
var ContractAwardTypes = []string{"A", "B", "C", "D"}

// AgencyFilter narrows the search server-side, e.g.
// {type: awarding, tier: subtier, name: Defense Information Systems Agency}.
type AgencyFilter struct {
	Type string `json:"type" yaml:"type" mapstructure:"type"`
	Tier string `json:"tier" yaml:"tier" mapstructure:"tier"`
	Name string `json:"name" yaml:"name" mapstructure:"name"`
}

// Query is the immutable description of a search. The page number is not
// part of it; the page loop injects it per request.
type Query struct {
	Fields         []string
	AwardTypeCodes []string
	PSCCodes       []string
	Sort           string
	Order          string
	Limit          int
	Subawards      bool
	Agencies       []AgencyFilter
	TimePeriod     *Window
}

// NewQuery returns a contract search for the given PSC codes sorted by end
// date, newest first.
func NewQuery(pscCodes []string) Query {
	return Query{
		Fields:         append([]string(nil), ReportFields...),
		AwardTypeCodes: append([]string(nil), ContractAwardTypes...),
		PSCCodes:       append([]string(nil), pscCodes...),
		Sort:           "End Date",
		Order:          "desc",
		Limit:          100,
	}
}

// SortsByEndDateDesc reports whether pages arrive newest end date first,
// which is the only ordering under which early stop is sound.
func (q Query) SortsByEndDateDesc() bool {
	return strings.EqualFold(q.Sort, "End Date") && strings.EqualFold(q.Order, "desc")
}

// SearchRequest matches the spending_by_award request schema.
type SearchRequest struct {
	Subawards bool          `json:"subawards"`
	Limit     int           `json:"limit"`
	Page      int           `json:"page"`
	Sort      string        `json:"sort"`
	Order     string        `json:"order"`
	Filters   SearchFilters `json:"filters"`
	Fields    []string      `json:"fields"`
}

type SearchFilters struct {
	AwardTypeCodes []string       `json:"award_type_codes"`
	PSCCodes       []string       `json:"psc_codes"`
	Agencies       []AgencyFilter `json:"agencies,omitempty"`
	TimePeriod     []TimePeriod   `json:"time_period,omitempty"`
}

type TimePeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Body builds the request body for one page.
func (q Query) Body(page int) SearchRequest {
	req := SearchRequest{
		Subawards: q.Subawards,
		Limit:     q.Limit,
		Page:      page,
		Sort:      q.Sort,
		Order:     q.Order,
		Filters: SearchFilters{
			AwardTypeCodes: q.AwardTypeCodes,
			PSCCodes:       q.PSCCodes,
			Agencies:       q.Agencies,
		},
		Fields: q.Fields,
	}
	if q.TimePeriod != nil {
		req.Filters.TimePeriod = []TimePeriod{{
			StartDate: q.TimePeriod.StartISO(),
			EndDate:   q.TimePeriod.EndISO(),
		}}
	}
	return req
}

// searchResponse represents the spending_by_award response.
type searchResponse struct {
	Results      []Record        `json:"results"`
	PageMetadata json.RawMessage `json:"page_metadata"`
}

// USAspendingSource fetches award pages from the USAspending API.
type USAspendingSource struct {
	Client  *RetryClient
	BaseURL string
	Log     logrus.FieldLogger
}

func NewUSAspendingSource(client *RetryClient, baseURL string) *USAspendingSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &USAspendingSource{
		Client:  client,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Log:     client.Log,
	}
}

// FetchPage posts the query for one page and decodes the response.
func (s *USAspendingSource) FetchPage(ctx context.Context, q Query, page int) (*Page, error) {
	jsonBody, err := json.Marshal(q.Body(page))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	s.Log.Debugf("[USAspending] Fetching page=%d limit=%d sort=%q order=%s", page, q.Limit, q.Sort, q.Order)

	resp, err := s.Client.Do(ctx, http.MethodPost, s.BaseURL+SearchPath, jsonBody)
	if err != nil {
		return nil, err
	}

	var apiResp searchResponse
	if err := json.Unmarshal(resp.Body, &apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	out := &Page{
		Number:  page,
		Records: apiResp.Results,
		RawMeta: apiResp.PageMetadata,
	}
	if len(apiResp.PageMetadata) > 0 && string(apiResp.PageMetadata) != "null" {
		if err := json.Unmarshal(apiResp.PageMetadata, &out.Meta); err != nil {
			return nil, fmt.Errorf("decoding page_metadata: %w", err)
		}
	}
	return out, nil
}

// ToptierAgency is one entry of the toptier agency reference list.
type ToptierAgency struct {
	AgencyName   string `json:"agency_name"`
	ToptierCode  string `json:"toptier_code"`
	Abbreviation string `json:"abbreviation"`
}

// HealthReport is the outcome of a reachability check.
type HealthReport struct {
	StatusCode int
	Agencies   []ToptierAgency
}

// ToptierAgencies lists toptier agencies. It doubles as a cheap health check
// of the API before a long paginated pull.
func (s *USAspendingSource) ToptierAgencies(ctx context.Context) (*HealthReport, error) {
	resp, err := s.Client.Do(ctx, http.MethodGet, s.BaseURL+ToptierPath, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []ToptierAgency `json:"results"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	s.Log.Infof("[USAspending] Toptier agencies: %d", len(payload.Results))
	return &HealthReport{StatusCode: resp.StatusCode, Agencies: payload.Results}, nil
}

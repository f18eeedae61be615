package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/analyticsreporting/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"oos-analytics/config"
	"oos-analytics/models"
	"oos-analytics/utils"
)

// Dimensions requested for every out-of-stock query, in the positional
// order the flattener relies on.
var queryDimensions = []string{
	"ga:eventAction",
	"ga:eventLabel",
	"ga:dateHour",
	"ga:pagePathLevel1",
}

const (
	queryMetric         = "ga:totalEvents"
	categoryDimension   = "ga:eventCategory"
	filterOperatorExact = "EXACT"
	clauseOperatorAnd   = "AND"
)

// Fetcher issues one report query per call.
type Fetcher interface {
	FetchPage(ctx context.Context, start, end, pageToken string) (*models.RawPage, error)
}

// Query holds the fixed parameters of the out-of-stock report.
type Query struct {
	ViewID        string
	EventCategory string
	SamplingLevel string
	PageSize      int64
}

// QueryFromConfig extracts the report parameters from cfg.
func QueryFromConfig(cfg *config.Config) Query {
	return Query{
		ViewID:        cfg.ViewID,
		EventCategory: cfg.EventCategory,
		SamplingLevel: cfg.SamplingLevel,
		PageSize:      int64(cfg.PageSize),
	}
}

// GAFetcher queries the Analytics Reporting API v4.
type GAFetcher struct {
	svc    *analyticsreporting.Service
	query  Query
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewGAFetcher builds the reporting service on top of an authorized client.
// Extra options are appended after the client, e.g. a test endpoint.
func NewGAFetcher(ctx context.Context, client *http.Client, query Query, maxRetries int,
	logger *utils.Logger, opts ...option.ClientOption) (*GAFetcher, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := analyticsreporting.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("analytics: create reporting service: %w", err)
	}

	return &GAFetcher{
		svc:   svc,
		query: query,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable:   isRetryable,
		},
		logger: logger,
	}, nil
}

// WithRetryDelay overrides the initial back-off between attempts.
func (f *GAFetcher) WithRetryDelay(d time.Duration) *GAFetcher {
	f.retry.BaseDelay = d
	return f
}

// FetchPage runs one batchGet for the date range, continuing from pageToken
// when it is not empty.
func (f *GAFetcher) FetchPage(ctx context.Context, start, end, pageToken string) (*models.RawPage, error) {
	req := &analyticsreporting.GetReportsRequest{
		ReportRequests: []*analyticsreporting.ReportRequest{f.reportRequest(start, end, pageToken)},
	}

	f.logger.Debug("[analytics] batchGet %s..%s view=%s token=%q", start, end, f.query.ViewID, pageToken)

	var resp *analyticsreporting.GetReportsResponse
	err := f.retry.Do(ctx, "batchGet "+start, func() error {
		var callErr error
		resp, callErr = f.svc.Reports.BatchGet(req).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Reports) == 0 || resp.Reports[0] == nil {
		return nil, fmt.Errorf("analytics: %w: response has no report", models.ErrMalformedResponse)
	}
	return toRawPage(resp.Reports[0]), nil
}

func (f *GAFetcher) reportRequest(start, end, pageToken string) *analyticsreporting.ReportRequest {
	dims := make([]*analyticsreporting.Dimension, 0, len(queryDimensions))
	for _, name := range queryDimensions {
		dims = append(dims, &analyticsreporting.Dimension{Name: name})
	}

	return &analyticsreporting.ReportRequest{
		ViewId:     f.query.ViewID,
		DateRanges: []*analyticsreporting.DateRange{{StartDate: start, EndDate: end}},
		Metrics:    []*analyticsreporting.Metric{{Expression: queryMetric}},
		Dimensions: dims,
		DimensionFilterClauses: []*analyticsreporting.DimensionFilterClause{{
			Operator: clauseOperatorAnd,
			Filters: []*analyticsreporting.DimensionFilter{{
				DimensionName: categoryDimension,
				Operator:      filterOperatorExact,
				Expressions:   []string{f.query.EventCategory},
			}},
		}},
		SamplingLevel: f.query.SamplingLevel,
		PageSize:      f.query.PageSize,
		PageToken:     pageToken,
	}
}

func toRawPage(report *analyticsreporting.Report) *models.RawPage {
	page := &models.RawPage{NextPageToken: report.NextPageToken}
	if report.Data == nil {
		return page
	}

	page.RowCount = report.Data.RowCount
	page.Rows = make([]models.RawRow, 0, len(report.Data.Rows))
	for _, r := range report.Data.Rows {
		if r == nil {
			page.Rows = append(page.Rows, models.RawRow{})
			continue
		}
		row := models.RawRow{Dimensions: r.Dimensions}
		if len(r.Metrics) > 0 && r.Metrics[0] != nil {
			row.Metrics = r.Metrics[0].Values
		}
		page.Rows = append(page.Rows, row)
	}
	return page
}

// isRetryable reports whether a failed call may succeed when repeated:
// quota exhaustion, server errors and transport errors.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return true
}

func classify(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("analytics: %w: token refresh: %w", models.ErrAuth, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return fmt.Errorf("analytics: %w: %w", models.ErrAuth, err)
	}
	return fmt.Errorf("analytics: %w: %w", models.ErrTransport, err)
}

package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"oos-analytics/models"
	"oos-analytics/utils"
)

// PageObserver is notified after every successful fetch.
type PageObserver interface {
	ObservePage(rows int, took time.Duration)
}

// Paginator drives a Fetcher through every page of a date range.
type Paginator struct {
	fetcher  Fetcher
	limiter  *utils.RateLimiter
	logger   *utils.Logger
	observer PageObserver
}

// NewPaginator creates a Paginator. observer may be nil.
func NewPaginator(fetcher Fetcher, limiter *utils.RateLimiter, logger *utils.Logger, observer PageObserver) *Paginator {
	if limiter == nil {
		limiter = utils.NewRateLimiter(0)
	}
	return &Paginator{fetcher: fetcher, limiter: limiter, logger: logger, observer: observer}
}

// FetchAll retrieves every page for start..end in fetch order.
//
// The first page's continuation token doubles as the page capacity, so the
// number of pages is ceil(rowCount / token). A later page without a token,
// or one that hands back a token already used, ends pagination early.
func (p *Paginator) FetchAll(ctx context.Context, start, end string) ([]*models.RawPage, error) {
	p.logger.Info("[paginator] %s: requesting page 1", start)

	first, err := p.fetch(ctx, start, end, "")
	if err != nil {
		return nil, fmt.Errorf("paginator: %s page 1: %w", start, err)
	}
	pages := []*models.RawPage{first}

	if first.NextPageToken == "" {
		p.logger.Info("[paginator] %s: single page, %d rows", start, len(first.Rows))
		return pages, nil
	}

	capacity, err := strconv.ParseInt(first.NextPageToken, 10, 64)
	if err != nil || capacity <= 0 {
		return nil, fmt.Errorf("paginator: %w: page token %q is not a positive row count",
			models.ErrMalformedResponse, first.NextPageToken)
	}
	totalPages := TotalPages(first.RowCount, capacity)
	p.logger.Info("[paginator] %s: page token %d | total rows %d | total pages %d",
		start, capacity, first.RowCount, totalPages)

	used := utils.NewTokenSet()
	token := first.NextPageToken
	for pageNum := 2; pageNum <= totalPages; pageNum++ {
		if used.Contains(token) {
			p.logger.Warn("[paginator] %s: token %q already requested, stopping at page %d",
				start, token, pageNum-1)
			break
		}
		used.Add(token)

		page, err := p.fetch(ctx, start, end, token)
		if err != nil {
			return nil, fmt.Errorf("paginator: %s page %d: %w", start, pageNum, err)
		}
		pages = append(pages, page)
		p.logger.Debug("[paginator] %s: page %d completed, %d rows", start, pageNum, len(page.Rows))

		if page.NextPageToken == "" {
			if pageNum < totalPages {
				p.logger.Warn("[paginator] %s: page %d has no continuation token, expected %d pages",
					start, pageNum, totalPages)
			}
			break
		}
		token = page.NextPageToken
	}

	p.logger.Debug("[paginator] %s: %d pages fetched with %d continuation tokens", start, len(pages), used.Size())
	return pages, nil
}

func (p *Paginator) fetch(ctx context.Context, start, end, token string) (*models.RawPage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	began := time.Now()
	page, err := p.fetcher.FetchPage(ctx, start, end, token)
	if err != nil {
		return nil, err
	}
	if p.observer != nil {
		p.observer.ObservePage(len(page.Rows), time.Since(began))
	}
	return page, nil
}

// TotalPages returns ceil(rows / capacity), never less than one.
func TotalPages(rows, capacity int64) int {
	if capacity <= 0 || rows <= capacity {
		return 1
	}
	return int((rows + capacity - 1) / capacity)
}

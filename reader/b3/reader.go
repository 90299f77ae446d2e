package b3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	appconfig "ibovflow/config"
	"ibovflow/logger"
	"ibovflow/models"
)

// Failure kinds surfaced once a page's retry budget is exhausted.
var (
	// ErrTransport covers network failures and non-2xx HTTP responses.
	ErrTransport = errors.New("transport error")
	// ErrMalformedResponse means the body could not be decoded as a page
	// envelope.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrEmptyResponse means the body decoded but carried no usable data.
	ErrEmptyResponse = errors.New("empty response")
	// ErrUnexpected covers failures outside the known taxonomy.
	ErrUnexpected = errors.New("unexpected error")
)

// backoffWindow bounds the randomized sleep between retry attempts.
type backoffWindow struct {
	min time.Duration
	max time.Duration
}

func (w backoffWindow) next() time.Duration {
	if w.max <= w.min {
		return w.min
	}
	return w.min + time.Duration(rand.Int63n(int64(w.max-w.min)))
}

// Reader pulls the daily index composition from the B3 endpoint page by
// page. All fetches are strictly sequential; the endpoint has no page tokens
// and enforces undocumented rate limits.
type Reader struct {
	config  *appconfig.Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log

	headers map[string]string

	firstPageBackoff backoffWindow
	pageBackoff      backoffWindow
	interPageDelay   backoffWindow
}

// NewReader creates a Reader from the B3 source configuration.
func NewReader(cfg *appconfig.Config) *Reader {
	log := logger.GetLogger()

	src := cfg.Source.B3
	rps := src.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := src.RateLimit.BurstSize
	if burst < 1 {
		burst = 1
	}

	reader := &Reader{
		config:  cfg,
		client:  &http.Client{Timeout: src.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
		// The endpoint sits behind bot mitigation; a browser-like header
		// set keeps requests from being blocked.
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "pt-BR,pt;q=0.9,en;q=0.8",
			"Connection":      "keep-alive",
			"Referer":         "https://sistemaswebb3-listados.b3.com.br/",
			"Sec-Fetch-Dest":  "empty",
			"Sec-Fetch-Mode":  "cors",
			"Sec-Fetch-Site":  "same-origin",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		firstPageBackoff: backoffWindow{2 * time.Second, 5 * time.Second},
		pageBackoff:      backoffWindow{1 * time.Second, 3 * time.Second},
		interPageDelay:   backoffWindow{1 * time.Second, 2 * time.Second},
	}

	log.WithComponent("b3_reader").WithFields(logger.Fields{
		"index":     src.Index,
		"page_size": src.PageSize,
		"language":  src.Language,
		"timeout":   src.Timeout,
	}).Info("b3 reader initialized")

	return reader
}

// FetchPage fetches a single page with the bounded retry policy. Page 1 uses
// the wider first-fetch backoff window.
func (r *Reader) FetchPage(ctx context.Context, pageNumber int) (*models.PageEnvelope, error) {
	window := r.pageBackoff
	if pageNumber == 1 {
		window = r.firstPageBackoff
	}
	return r.fetchPage(ctx, pageNumber, window)
}

// fetchPage runs the retry loop for one page: attempt, classify the failure,
// back off, attempt again until the budget is spent.
func (r *Reader) fetchPage(ctx context.Context, pageNumber int, window backoffWindow) (*models.PageEnvelope, error) {
	log := r.log.WithComponent("b3_reader").WithFields(logger.Fields{
		"page":      pageNumber,
		"operation": "fetch_page",
	})

	maxAttempts := r.config.Source.B3.Retry.MaxAttempts
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := window.next()
			log.WithFields(logger.Fields{
				"attempt": attempt,
				"delay":   delay.Seconds(),
			}).Info("backing off before retry")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}

		log.WithFields(logger.Fields{"attempt": attempt, "max_attempts": maxAttempts}).Info("fetching page")

		env, err := r.doFetch(ctx, pageNumber)
		if err == nil {
			log.WithFields(logger.Fields{
				"attempt":      attempt,
				"record_count": len(env.Results),
			}).Info("page fetched")
			return env, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		log.WithError(err).WithFields(logger.Fields{"attempt": attempt}).Warn("page fetch attempt failed")
	}

	return nil, fmt.Errorf("page %d failed after %d attempts: %w", pageNumber, maxAttempts, lastErr)
}

// doFetch performs one HTTP attempt and classifies any failure.
func (r *Reader) doFetch(ctx context.Context, pageNumber int) (*models.PageEnvelope, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	src := r.config.Source.B3
	target := BuildRequestTarget(src.URL, models.FetchParameters{
		PageNumber: pageNumber,
		PageSize:   src.PageSize,
		Language:   src.Language,
		Index:      src.Index,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnexpected, err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(probe) == 0 {
		return nil, ErrEmptyResponse
	}

	var env models.PageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if _, ok := probe["results"]; !ok {
		// The body still carries header/page data; pass it along.
		r.log.WithComponent("b3_reader").WithFields(logger.Fields{
			"page": pageNumber,
		}).Warn("response has no results field")
	}

	return &env, nil
}

// FetchAllPages fetches page 1 and, when more pages exist, pages 2..N
// sequentially, consolidating results in page order. A page that exhausts
// its retry budget is logged, counted in PagesFailed and skipped; the fetch
// is best-effort, not all-or-nothing.
func (r *Reader) FetchAllPages(ctx context.Context) (*models.PageEnvelope, error) {
	log := r.log.WithComponent("b3_reader").WithFields(logger.Fields{"operation": "fetch_all_pages"})
	log.Info("starting multi-page fetch")

	first, err := r.FetchPage(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("first page: %w", err)
	}

	totalPages := first.Page.TotalPages
	if totalPages <= 1 {
		log.Info("single page available")
		return first, nil
	}

	log.WithFields(logger.Fields{"total_pages": totalPages}).Info("fetching remaining pages")

	for pageNumber := 2; pageNumber <= totalPages; pageNumber++ {
		// Short pause between pages to stay under the rate limit.
		if err := sleepCtx(ctx, r.interPageDelay.next()); err != nil {
			return nil, err
		}

		env, err := r.fetchPage(ctx, pageNumber, r.pageBackoff)
		if err != nil {
			first.PagesFailed++
			log.WithError(err).WithFields(logger.Fields{"page": pageNumber}).Warn("page skipped after exhausting retries")
			continue
		}
		if env.Results == nil {
			first.PagesFailed++
			log.WithFields(logger.Fields{"page": pageNumber}).Warn("page skipped: no results field")
			continue
		}

		first.Results = append(first.Results, env.Results...)
		log.WithFields(logger.Fields{
			"page":         pageNumber,
			"record_count": len(env.Results),
		}).Info("page consolidated")
	}

	first.Page.TotalRecords = len(first.Results)

	log.WithFields(logger.Fields{
		"total_records": first.Page.TotalRecords,
		"total_pages":   totalPages,
		"pages_failed":  first.PagesFailed,
	}).Info("multi-page fetch complete")

	return first, nil
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

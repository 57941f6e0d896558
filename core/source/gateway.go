package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ar-io/contiguous-core/core"
	"github.com/ar-io/contiguous-core/core/metrics"
	"gitlab.com/NebulousLabs/log"
	"gitlab.com/NebulousLabs/ratelimit"
)

// GatewayDataSource fetches bytes from a trusted or untrusted upstream
// gateway's /raw/{id} endpoint, optionally with a Range header derived
// from the requested region. It never verifies the bytes itself — the
// result's Verified flag is always false; Trusted reflects the static
// trust configuration of this particular gateway instance, the way the
// teacher's workerPool marks each worker's host as GoodForUpload/Renew
// independently of the data it serves.
type GatewayDataSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
	trusted    bool
	limiter    *ratelimit.RateLimit
	log        *log.Logger
	counters   *metrics.Counters
	latencies  *metrics.Latencies

	retry retryPolicy
}

// retryPolicy is the source-local exponential-backoff retrier called out
// in §7 rule 4: Transient errors are retried by the individual source,
// and only become Fatal for the chain once the budget is exhausted.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxAttempts: 4, baseDelay: 50 * time.Millisecond, maxDelay: 2 * time.Second}
}

func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.baseDelay << attempt
	if d > p.maxDelay || d <= 0 {
		d = p.maxDelay
	}
	return d
}

// GatewayConfig configures a GatewayDataSource.
type GatewayConfig struct {
	Name    string
	BaseURL string
	Trusted bool
	// RateLimitBytesPerSecond throttles the streamed response body. Zero
	// disables throttling.
	RateLimitBytesPerSecond int64
	HTTPClient              *http.Client
}

// NewGatewayDataSource builds a gateway-backed source per cfg.
func NewGatewayDataSource(cfg GatewayConfig, logger *log.Logger, counters *metrics.Counters) *GatewayDataSource {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	var limiter *ratelimit.RateLimit
	if cfg.RateLimitBytesPerSecond > 0 {
		limiter = ratelimit.NewRateLimit(cfg.RateLimitBytesPerSecond, cfg.RateLimitBytesPerSecond, 0)
	}
	return &GatewayDataSource{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		httpClient: client,
		trusted:    cfg.Trusted,
		limiter:    limiter,
		log:        logger,
		counters:   counters,
		latencies:  metrics.NewLatencies(256),
		retry:      defaultRetryPolicy(),
	}
}

func (g *GatewayDataSource) Name() string { return g.name }

func (g *GatewayDataSource) GetData(ctx context.Context, req core.Request) (core.ContiguousData, error) {
	if err := core.CheckCancelled(g.name, ctx); err != nil {
		return core.ContiguousData{}, err
	}

	var lastErr error
	for attempt := 0; attempt < g.retry.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return core.ContiguousData{}, core.NewError(g.name, core.KindCancelled, ctx.Err())
			case <-time.After(g.retry.delay(attempt - 1)):
			}
		}

		start := time.Now()
		data, err := g.fetchOnce(ctx, req)
		if err == nil {
			g.latencies.Observe(time.Since(start))
			g.counters.Inc("gateway_success")
			return data, nil
		}
		if core.IsKind(err, core.KindCancelled) || core.IsKind(err, core.KindNotFound) {
			return core.ContiguousData{}, err
		}
		if !core.IsKind(err, core.KindTransient) {
			return core.ContiguousData{}, err
		}
		lastErr = err
		g.counters.Inc("gateway_retry")
	}

	// Retries exhausted: a Transient failure becomes Fatal for this
	// source, per §7 rule 4, but the chain continues to the next source.
	return core.ContiguousData{}, core.NewError(g.name, core.KindFatal, lastErr)
}

func (g *GatewayDataSource) fetchOnce(ctx context.Context, req core.Request) (core.ContiguousData, error) {
	url := fmt.Sprintf("%s/raw/%s", g.baseURL, req.ID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.ContiguousData{}, core.NewError(g.name, core.KindFatal, err)
	}
	if req.Region != nil {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", req.Region.Offset, req.Region.Offset+req.Region.Size-1))
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return core.ContiguousData{}, core.NewError(g.name, core.KindTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return core.ContiguousData{}, core.NewError(g.name, core.KindNotFound, nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		resp.Body.Close()
		return core.ContiguousData{}, core.NewError(g.name, core.KindTransient, fmt.Errorf("upstream status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return core.ContiguousData{}, core.NewError(g.name, core.KindFatal, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	body := io.ReadCloser(resp.Body)
	if g.limiter != nil {
		body = &rateLimitedBody{rc: resp.Body, r: g.limiter.NewRLReader(resp.Body)}
	}

	return core.ContiguousData{
		Stream:            body,
		Size:              size,
		SourceContentType: resp.Header.Get("Content-Type"),
		Verified:          false,
		Trusted:           g.trusted,
		Cached:            false,
	}, nil
}

// rateLimitedBody throttles Read calls through the gateway's configured
// ratelimit.RateLimit reader, while still closing the underlying response
// body correctly.
type rateLimitedBody struct {
	rc io.ReadCloser
	r  io.Reader
}

func (b *rateLimitedBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *rateLimitedBody) Close() error { return b.rc.Close() }

package ratelimit

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

// Pipedream proxy org-wide allowance: 1000 calls per 5 minutes.
const (
	pipedreamProxyLimit  = 1000
	pipedreamProxyWindow = 5 * time.Minute
)

// PipedreamProxyKey returns the Redis key for the proxy's org-wide window.
func PipedreamProxyKey(organizationID string) string {
	return fmt.Sprintf("source_rate_limit:%s:pipedream_proxy:org:%s", organizationID, organizationID)
}

// HTTPClientConfig configures a rate-limited HTTP client for one source
// connection.
type HTTPClientConfig struct {
	OrganizationID  string
	SourceShortName string
	ConnectionID    string
	// ViaProxy marks clients whose outbound traffic goes through the
	// Pipedream proxy, which carries its own org-wide allowance.
	ViaProxy bool
	// RequestTimeout applies per attempt. Zero means 30s.
	RequestTimeout time.Duration
	// MaxRetries bounds transient retries. Zero means 3.
	MaxRetries uint64
	// RetryBaseDelay is the initial backoff delay. Zero means 500ms.
	RetryBaseDelay time.Duration
}

// HTTPClient is the HTTP client handed to source adapters. It gates every
// request on the source limiter (and the proxy window when applicable),
// converts internal rate-limit overage into a synthetic 429 response, and
// retries transient upstream failures with jittered exponential backoff.
//
// Adapters therefore see exactly one rate-limit code path: an HTTP 429 with a
// Retry-After header, whether the limit tripped internally or upstream.
type HTTPClient struct {
	config  HTTPClientConfig
	inner   *http.Client
	limiter *SourceLimiter
	proxy   *SlidingWindow
	logger  *common.ContextLogger
}

// NewHTTPClient creates a rate-limited HTTP client. redisClient is only used
// for the proxy window and may be nil when ViaProxy is false.
func NewHTTPClient(config HTTPClientConfig, limiter *SourceLimiter, redisClient redis.UniversalClient, logger *common.ContextLogger) *HTTPClient {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{
			"component": "http_client",
			"source":    config.SourceShortName,
		})
	}
	var proxy *SlidingWindow
	if config.ViaProxy && redisClient != nil {
		proxy = NewSlidingWindow(redisClient)
	}
	return &HTTPClient{
		config:  config,
		inner:   &http.Client{Timeout: config.RequestTimeout},
		limiter: limiter,
		proxy:   proxy,
		logger:  logger,
	}
}

// Do executes the request under the source rate limits.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if c.limiter != nil {
		if err := c.limiter.Check(ctx, c.config.OrganizationID, c.config.SourceShortName, c.config.ConnectionID); err != nil {
			var srl *common.SourceRateLimitError
			if errors.As(err, &srl) {
				return syntheticTooManyRequests(req, srl.RetryAfter), nil
			}
			return nil, err
		}
	}

	if c.proxy != nil {
		result, err := c.proxy.Allow(ctx, PipedreamProxyKey(c.config.OrganizationID), pipedreamProxyLimit, pipedreamProxyWindow)
		if err != nil {
			c.logger.WithError(err).Warn("proxy rate window unavailable, allowing request")
		} else if !result.Allowed {
			return syntheticTooManyRequests(req, result.RetryAfter), nil
		}
	}

	return c.doWithRetry(req)
}

// doWithRetry retries transient upstream failures (5xx, timeouts) with
// jittered exponential backoff. 4xx responses, including real 429s, are
// returned to the adapter untouched.
func (c *HTTPClient) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(c.config.RetryBaseDelay)),
		c.config.MaxRetries), req.Context())

	operation := func() error {
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(fmt.Errorf("failed to rewind request body: %w", err))
			}
			req.Body = body
		}

		r, err := c.inner.Do(req)
		if err != nil {
			// Network-level failures and timeouts are transient.
			return common.WrapError(common.KindProviderTransient, err, "request to %s failed", req.URL.Host)
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return common.NewError(common.KindProviderTransient, "upstream %s returned %d", req.URL.Host, r.StatusCode)
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// syntheticTooManyRequests fabricates the HTTP-429-shaped response that
// represents an internal limit at the wrapper boundary.
func syntheticTooManyRequests(req *http.Request, retryAfter time.Duration) *http.Response {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	header := http.Header{}
	header.Set("Retry-After", strconv.Itoa(seconds))
	header.Set("X-Rate-Limit-Source", "internal")
	return &http.Response{
		Status:     "429 Too Many Requests",
		StatusCode: http.StatusTooManyRequests,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}
}


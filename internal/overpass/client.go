package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/streetsignal/streetsignal/internal/provider"
	"github.com/streetsignal/streetsignal/internal/resilience"
)

const defaultBaseURL = "https://overpass-api.de/api/interpreter"

// Response is the raw Overpass API payload.
type Response struct {
	Elements []Element `json:"elements"`
}

// Element is one node, way, or relation. Ways and relations carry a Center
// when the query requests "out center".
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat,omitempty"`
	Lon    float64           `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center is the centroid of an area geometry.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Client executes Overpass queries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the interpreter endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent sets the identifying User-Agent.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithLimiter replaces the map-data rate limiter.
func WithLimiter(lim *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = lim }
}

// WithRetry replaces the retry profile.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates an Overpass client. Long default timeout: area queries
// routinely take minutes on public instances.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 240 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  "streetsignal/1.0 (hello@streetsignal.dev)",
		limiter:    provider.NewOverpassLimiter(),
		retry:      resilience.OverpassRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query posts an Overpass QL query and decodes the JSON response. Transient
// failures are retried per the map-data profile.
func (c *Client) Query(ctx context.Context, ql string) (*Response, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("overpass", "interpreter")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		return c.doQuery(ctx, ql)
	})
}

func (c *Client) doQuery(ctx context.Context, ql string) (*Response, error) {
	if err := provider.Wait(ctx, c.limiter); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limiter")
	}

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("overpass: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "overpass: parse response")
	}

	zap.L().Debug("overpass query complete",
		zap.Int("elements", len(out.Elements)),
		zap.Duration("took", time.Since(start)),
	)
	return &out, nil
}

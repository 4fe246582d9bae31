package figma

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// DefaultAPIBase is the public REST endpoint.
const DefaultAPIBase = "https://api.figma.com/v1"

const (
	defaultCacheSize  = 50
	defaultCacheTTL   = 5 * time.Minute
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
)

var (
	ErrNoToken      = errors.New("figma: no access token configured")
	ErrUnauthorized = errors.New("figma: unauthorized")
	ErrForbidden    = errors.New("figma: forbidden")
	ErrNotFound     = errors.New("figma: not found")
	ErrRateLimited  = errors.New("figma: rate limit exceeded")
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Token             string
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerMinute int
	CacheSize         int
	CacheTTL          time.Duration
	MaxRetries        int
	Registerer        prometheus.Registerer
	Logger            *zap.Logger
}

// Client is a read-only Figma REST client. Identical concurrent requests are
// coalesced and successful responses are kept in a bounded, expiring cache,
// so callers can re-request the same ids without hitting the upstream limit.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *expirable.LRU[string, []byte]
	group      singleflight.Group
	metrics    *clientMetrics
	logger     *zap.Logger
	maxRetries int

	// backoff returns the wait before retry attempt n when the server sent
	// no Retry-After header.
	backoff func(attempt int) time.Duration
}

// NewClient creates a Figma API client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIBase
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60)
		burst = max(1, opts.RequestsPerMinute/10)
	}

	return &Client{
		token:      opts.Token,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, burst),
		cache:      expirable.NewLRU[string, []byte](opts.CacheSize, nil, opts.CacheTTL),
		metrics:    newClientMetrics(opts.Registerer),
		logger:     opts.Logger.Named("figma"),
		maxRetries: opts.MaxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt+1))) * time.Second
		},
	}
}

// GetFile fetches the document tree of a file down to depth levels.
// A depth of zero or less fetches the whole tree.
func (c *Client) GetFile(ctx context.Context, fileKey string, depth int) (*RawNode, error) {
	q := url.Values{}
	if depth > 0 {
		q.Set("depth", strconv.Itoa(depth))
	}
	body, err := c.fetch(ctx, "files", "/files/"+url.PathEscape(fileKey), q)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Name     string   `json:"name"`
		Document *RawNode `json:"document"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "parsing Figma file")
	}
	if resp.Document == nil {
		return nil, errors.Newf("figma: file %s has no document", fileKey)
	}
	return resp.Document, nil
}

// GetNodes fetches the subtrees rooted at ids. Ids the API could not
// resolve are absent from the result.
func (c *Client) GetNodes(ctx context.Context, fileKey string, ids []string, depth int) (map[string]*RawNode, error) {
	out := map[string]*RawNode{}
	if len(ids) == 0 {
		return out, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	if depth > 0 {
		q.Set("depth", strconv.Itoa(depth))
	}
	body, err := c.fetch(ctx, "nodes", "/files/"+url.PathEscape(fileKey)+"/nodes", q)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Nodes map[string]*struct {
			Document *RawNode `json:"document"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "parsing Figma nodes")
	}
	for id, entry := range resp.Nodes {
		if entry != nil && entry.Document != nil {
			out[id] = entry.Document
		}
	}
	return out, nil
}

// GetRenderedImages asks the API to rasterize ids and returns the temporary
// image URL per id. Ids that could not be rendered are absent.
func (c *Client) GetRenderedImages(ctx context.Context, fileKey string, ids []string, format string, scale float64) (map[string]string, error) {
	out := map[string]string{}
	if len(ids) == 0 {
		return out, nil
	}
	if format == "" {
		format = "png"
	}
	if scale == 0 {
		scale = 2
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("format", format)
	q.Set("scale", strconv.FormatFloat(scale, 'g', -1, 64))
	body, err := c.fetch(ctx, "images", "/images/"+url.PathEscape(fileKey), q)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Images map[string]*string `json:"images"`
		Err    *string            `json:"err"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "parsing image URLs")
	}
	if resp.Err != nil && *resp.Err != "" {
		return nil, errors.Newf("figma image API error: %s", *resp.Err)
	}
	for id, u := range resp.Images {
		if u != nil && *u != "" {
			out[id] = *u
		}
	}
	return out, nil
}

// fetch serves a GET from the cache, joins an identical in-flight request,
// or performs it.
func (c *Client) fetch(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		reqURL += "?" + enc
	}

	if body, ok := c.cache.Get(reqURL); ok {
		c.metrics.cacheHits.WithLabelValues(endpoint).Inc()
		return body, nil
	}

	v, err, shared := c.group.Do(reqURL, func() (any, error) {
		body, err := c.doRequest(ctx, endpoint, reqURL)
		if err != nil {
			return nil, err
		}
		c.cache.Add(reqURL, body)
		return body, nil
	})
	if shared {
		c.metrics.shared.WithLabelValues(endpoint).Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// doRequest executes an authenticated GET, retrying on 429.
func (c *Client) doRequest(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	if c.token == "" {
		return nil, errors.WithHint(ErrNoToken, "set FIGMA_TOKEN or figma.token in .figma-auto/config.yaml")
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "waiting for rate limiter")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, "creating request")
		}
		req.Header.Set("X-FIGMA-TOKEN", c.token)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.requests.WithLabelValues(endpoint, "error").Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, errors.Wrap(err, "figma API request failed")
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.metrics.requests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		if err != nil {
			return nil, errors.Wrap(err, "reading response")
		}

		c.logger.Debug("request",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("attempt", attempt),
		)

		switch resp.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusTooManyRequests:
			if attempt >= c.maxRetries {
				return nil, errors.Wrapf(ErrRateLimited, "after %d retries", c.maxRetries)
			}
			wait := retryAfter(resp.Header.Get("Retry-After"))
			if wait <= 0 {
				wait = c.backoff(attempt)
			}
			c.logger.Warn("rate limited, backing off", zap.String("endpoint", endpoint), zap.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		case http.StatusUnauthorized:
			return nil, errors.WithHint(ErrUnauthorized, "check your FIGMA_TOKEN")
		case http.StatusForbidden:
			return nil, errors.WithHint(ErrForbidden, "the token may not have access to this file")
		case http.StatusNotFound:
			return nil, errors.WithHint(ErrNotFound, "check the file key and node ids")
		default:
			return nil, errors.Newf("figma API error %d: %s", resp.StatusCode, truncate(string(body), 200))
		}
	}
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ── URL Parsing ──

// ParseFigmaURL extracts the file key and optional node id from a Figma URL.
// Supports:
//
//	https://www.figma.com/file/XXXXX/Name
//	https://www.figma.com/design/XXXXX/Name?node-id=1-2
//	https://www.figma.com/design/XXXXX/branch/BBBBB/Name
func ParseFigmaURL(rawURL string) (fileKey string, nodeID string, err error) {
	u := rawURL
	for _, prefix := range []string{"https://", "http://", "www."} {
		u = strings.TrimPrefix(u, prefix)
	}

	if idx := strings.Index(u, "?"); idx >= 0 {
		query := u[idx+1:]
		u = u[:idx]
		for _, param := range strings.Split(query, "&") {
			if v, ok := strings.CutPrefix(param, "node-id="); ok {
				v, _ = url.QueryUnescape(v)
				nodeID = strings.ReplaceAll(v, "-", ":")
			}
		}
	}

	parts := strings.Split(u, "/")
	if len(parts) < 3 {
		return "", "", errors.New("invalid Figma URL: expected figma.com/design/<fileKey>/...")
	}
	if host := parts[0]; !strings.Contains(host, "figma.com") {
		return "", "", errors.Newf("not a Figma URL: host is %s", host)
	}
	switch kind := parts[1]; kind {
	case "design", "file", "board":
	default:
		return "", "", errors.Newf("unsupported Figma URL type: %s (expected design, file, or board)", kind)
	}

	fileKey = parts[2]
	if len(parts) >= 5 && parts[3] == "branch" {
		fileKey = parts[4]
	}
	if fileKey == "" {
		return "", "", errors.New("could not extract file key from Figma URL")
	}
	return fileKey, nodeID, nil
}

// IsFigmaURL reports whether s points at figma.com, with or without a
// scheme. It does not check the path; ParseFigmaURL does that.
func IsFigmaURL(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "figma.com" || strings.HasSuffix(host, ".figma.com")
}

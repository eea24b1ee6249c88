package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/util"
)

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// ErrUnsupportedContent is returned for responses that are not text documents
var ErrUnsupportedContent = errors.New("unsupported content type")

// Limiter throttles outbound requests per host and per arbitrary key
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
	WaitKey(ctx context.Context, key string) error
}

// StatusError is a non-2xx HTTP response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher fetches HTML content from URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int

	robots  *util.RobotsChecker
	limiter Limiter
	pages   *cache.PageCache
	logger  *zap.Logger
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		maxRetries: 3,
		logger:     zap.NewNop(),
	}
}

// Client returns the underlying HTTP client
func (f *Fetcher) Client() *http.Client {
	return f.httpClient
}

// WithRobots makes every fetch honour robots.txt
func (f *Fetcher) WithRobots(robots *util.RobotsChecker) *Fetcher {
	f.robots = robots
	return f
}

// WithLimiter throttles fetches per host
func (f *Fetcher) WithLimiter(limiter Limiter) *Fetcher {
	f.limiter = limiter
	return f
}

// WithCache serves repeated fetches from a page cache
func (f *Fetcher) WithCache(pages *cache.PageCache) *Fetcher {
	f.pages = pages
	return f
}

// WithLogger sets the logger
func (f *Fetcher) WithLogger(logger *zap.Logger) *Fetcher {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithMaxRetries sets the total number of attempts for transient failures
func (f *Fetcher) WithMaxRetries(n int) *Fetcher {
	if n > 0 {
		f.maxRetries = n
	}
	return f
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML        string
	ContentType string
	StatusCode  int
	Subject     string
	FinalURL    string
	FromCache   bool
}

// Fetch retrieves a document in a single attempt
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextContent(contentType) {
		return nil, fmt.Errorf("%s: %w", contentType, ErrUnsupportedContent)
	}

	var reader io.Reader = resp.Body
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()

	return &FetchResult{
		HTML:        string(body),
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		Subject:     extractSubject(finalURL),
		FinalURL:    finalURL,
	}, nil
}

// FetchWithRetry fetches through the cache, robots.txt check and rate
// limiter, retrying transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	if page, ok := f.pages.Get(rawURL); ok {
		f.logger.Debug("page cache hit", zap.String("url", rawURL))
		return &FetchResult{
			HTML:        string(page.Body),
			ContentType: page.ContentType,
			StatusCode:  http.StatusOK,
			Subject:     extractSubject(page.FinalURL),
			FinalURL:    page.FinalURL,
			FromCache:   true,
		}, nil
	}

	if f.robots != nil {
		if err := f.robots.Check(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	var (
		result *FetchResult
		err    error
	)
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if f.limiter != nil {
			if werr := f.limiter.Wait(ctx, rawURL); werr != nil {
				return nil, fmt.Errorf("rate limit: %w", werr)
			}
		}

		result, err = f.Fetch(ctx, rawURL)
		if err == nil || !isRetryableFetchError(err) || ctx.Err() != nil {
			break
		}

		if attempt < f.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			f.logger.Debug("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			fetchSleepFunc(backoff)
		}
	}
	if err != nil {
		return nil, err
	}

	if perr := f.pages.Put(&cache.Page{
		URL:         rawURL,
		FinalURL:    result.FinalURL,
		ContentType: result.ContentType,
		Body:        []byte(result.HTML),
		FetchedAt:   time.Now().UTC(),
	}); perr != nil {
		f.logger.Warn("page cache write failed", zap.String("url", rawURL), zap.Error(perr))
	}

	return result, nil
}

// isRetryableFetchError reports transient failures: 5xx, 429 and network errors
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	s := strings.ToLower(err.Error())
	if !strings.HasPrefix(s, "fetch:") {
		return false
	}
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "eof")
}

// isTextContent accepts HTML, XML and plain text. A missing header is accepted.
func isTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == "application/xhtml+xml" ||
		mediaType == "application/xml"
}

// extractSubject extracts a human-readable subject from the URL
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}

	// De-slugify: replace underscores and hyphens with spaces
	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")

	// Remove file extensions
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}

	return last
}

package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// ErrRobotsDisallowed is returned when robots.txt forbids fetching a URL
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// RobotsChecker checks robots.txt compliance
type RobotsChecker struct {
	cache      map[string]*robotstxt.RobotsData
	mu         sync.RWMutex
	httpClient *http.Client
	userAgent  string
	agent      string
	logger     *zap.Logger
}

// NewRobotsChecker creates a robots.txt checker. A nil client gets a plain
// client with the given timeout.
func NewRobotsChecker(userAgent string, client *http.Client, timeout time.Duration, logger *zap.Logger) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsChecker{
		cache:      make(map[string]*robotstxt.RobotsData),
		httpClient: client,
		userAgent:  userAgent,
		agent:      NormalizeUserAgent(userAgent),
		logger:     logger,
	}
}

// CanFetch checks if the URL can be fetched according to robots.txt
// Returns (allowed, crawlDelay, error)
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, 0, fmt.Errorf("unsupported scheme: %q", parsed.Scheme)
	}

	origin := parsed.Scheme + "://" + parsed.Host
	data, err := r.getRobotsData(ctx, origin)
	if err != nil {
		// Unreachable robots.txt does not block the fetch
		r.logger.Debug("robots.txt unavailable", zap.String("origin", origin), zap.Error(err))
		return true, 0, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	allowed := data.TestAgent(path, r.agent)

	var crawlDelay time.Duration
	if group := data.FindGroup(r.agent); group != nil {
		crawlDelay = group.CrawlDelay
	}
	return allowed, crawlDelay, nil
}

// Check returns ErrRobotsDisallowed when rawURL may not be fetched
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) error {
	allowed, _, err := r.CanFetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
	}
	return nil
}

// getRobotsData fetches and caches robots.txt data per origin
func (r *RobotsChecker) getRobotsData(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, exists := r.cache[origin]
	r.mu.RUnlock()

	if exists {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// FromResponse treats 4xx as allow-all and 5xx as disallow-all
	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[origin] = data
	r.mu.Unlock()

	return data, nil
}

// Clear clears the robots.txt cache
func (r *RobotsChecker) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*robotstxt.RobotsData)
}

// NormalizeUserAgent normalizes the user agent string for robots.txt matching
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}

package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/model"
)

const testArticle = `<html><body>
<p>The bridge opened in 1932.<sup class="reference"><a href="/source">[1]</a></sup>
It carries six lanes.<sup><a href="/missing">[2]</a></sup></p>
<p>Unsourced claim with a dead marker.<sup>[3]</sup></p>
</body></html>`

const testSource = `<html><head><title>Bridge history</title></head>
<body><nav>Home</nav><p>The bridge was opened to traffic in March 1932.</p></body></html>`

// fakeProvider answers every request with a fixed text
type fakeProvider struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []llm.VerifyRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Verify(ctx context.Context, req llm.VerifyRequest) (*llm.VerifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.VerifyResponse{Text: f.text, Model: "fake-1", TokensUsed: 42}, nil
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) lastPrompt(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1].UserPrompt
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(testArticle))
		case "/notes.md":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("Rivers flood in spring [1].\n\n[1] /source\n"))
		case "/source":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(testSource))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.HTTP.RespectRobots = false
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.HTTP.MaxRetries = 1
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.RateLimiting.LLMRequestsPerSecond = 0
	return cfg
}

func newTestPipeline(t *testing.T, provider llm.Provider) *Pipeline {
	t.Helper()
	verifier := llm.NewVerifierWithProvider(provider, llm.Config{Model: "fake-1", MaxSourceChars: 1000})
	p := NewPipeline(testConfig(), verifier, nil).WithRunID("run-1")
	p.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestVerifyCase_FromArticle(t *testing.T) {
	server := newTestServer(t)
	provider := &fakeProvider{text: `{"verdict": "Supported", "confidence": 92, "comments": "Opened March 1932."}`}
	p := newTestPipeline(t, provider)

	record := p.VerifyCase(context.Background(), model.Case{
		ID:          "case-1",
		ArticleURL:  server.URL + "/article",
		Index:       1,
		Occurrence:  1,
		GroundTruth: "supported",
	})

	require.Empty(t, record.Error)
	assert.Equal(t, "case-1", record.CaseID)
	assert.Equal(t, "run-1", record.RunID)
	assert.Equal(t, "fake", record.Provider)
	assert.Equal(t, "fake-1", record.Model)
	assert.Equal(t, "The bridge opened in 1932.", record.Claim)
	assert.Equal(t, model.ClaimStatusSpan, record.ClaimStatus)
	assert.Equal(t, server.URL+"/source", record.SourceURL)
	assert.Equal(t, model.VerdictSupported, record.GroundTruth)
	assert.Equal(t, model.VerdictSupported, record.Predicted)
	assert.Equal(t, 92.0, record.Confidence)
	assert.Equal(t, "Opened March 1932.", record.Comments)
	assert.Equal(t, 42, record.TokensUsed)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), record.CompletedAt)

	prompt := provider.lastPrompt(t)
	assert.Contains(t, prompt, "CLAIM:\nThe bridge opened in 1932.")
	assert.Contains(t, prompt, "SOURCE TITLE: Bridge history")
	assert.Contains(t, prompt, "opened to traffic in March 1932")
	assert.NotContains(t, prompt, "Home", "page chrome is stripped")
	assert.Contains(t, prompt, "CONTEXT")
}

func TestVerifyCase_PreExtractedClaim(t *testing.T) {
	server := newTestServer(t)
	provider := &fakeProvider{text: "Verdict: partially supported"}
	p := newTestPipeline(t, provider)

	record := p.VerifyCase(context.Background(), model.Case{
		ID:          "case-2",
		Claim:       "  The bridge opened in the 1930s.  ",
		SourceURL:   server.URL + "/source",
		GroundTruth: "Supported",
	})

	require.Empty(t, record.Error)
	assert.Equal(t, "The bridge opened in the 1930s.", record.Claim)
	assert.Empty(t, record.ClaimStatus)
	assert.Equal(t, model.VerdictPartiallySupported, record.Predicted)
	assert.NotContains(t, provider.lastPrompt(t), "CONTEXT")
}

func TestVerifyCase_SourceUnavailableStillVerified(t *testing.T) {
	server := newTestServer(t)
	provider := &fakeProvider{text: `{"verdict": "Source unavailable", "confidence": 99}`}
	p := newTestPipeline(t, provider)

	record := p.VerifyCase(context.Background(), model.Case{
		ID:          "case-3",
		ArticleURL:  server.URL + "/article",
		Index:       2,
		Occurrence:  1,
		GroundTruth: "source unavailable",
	})

	require.Empty(t, record.Stage)
	assert.Equal(t, server.URL+"/missing", record.SourceURL)
	assert.Contains(t, record.SourceError, "404")
	assert.Equal(t, model.VerdictSourceUnavailable, record.Predicted)
	assert.Contains(t, provider.lastPrompt(t), "SOURCE TEXT: unavailable (")
}

func TestVerifyCase_StageFailures(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name     string
		provider *fakeProvider
		c        model.Case
		stage    string
		contains string
	}{
		{
			name:     "article fetch",
			provider: &fakeProvider{text: "{}"},
			c:        model.Case{ID: "a", ArticleURL: server.URL + "/gone", Index: 1},
			stage:    model.StageFetch,
			contains: "404",
		},
		{
			name:     "no marker",
			provider: &fakeProvider{text: "{}"},
			c:        model.Case{ID: "b", ArticleURL: server.URL + "/article", Index: 9},
			stage:    model.StageExtract,
			contains: "no marker",
		},
		{
			name:     "nothing to work with",
			provider: &fakeProvider{text: "{}"},
			c:        model.Case{ID: "c"},
			stage:    model.StageExtract,
			contains: "neither claim text nor article URL",
		},
		{
			name:     "no source",
			provider: &fakeProvider{text: "{}"},
			c:        model.Case{ID: "d", ArticleURL: server.URL + "/article", Index: 3, Occurrence: 1},
			stage:    model.StageResolve,
			contains: "no cited source",
		},
		{
			name:     "provider error",
			provider: &fakeProvider{err: errors.New("503 from upstream")},
			c:        model.Case{ID: "e", Claim: "A claim long enough.", SourceURL: server.URL + "/source"},
			stage:    model.StageVerify,
			contains: "503 from upstream",
		},
		{
			name:     "unparseable",
			provider: &fakeProvider{text: "I cannot decide."},
			c:        model.Case{ID: "f", Claim: "A claim long enough.", SourceURL: server.URL + "/source"},
			stage:    model.StageParse,
			contains: "unparseable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.provider)
			record := p.VerifyCase(context.Background(), tt.c)

			require.NotNil(t, record)
			assert.Equal(t, tt.c.ID, record.CaseID)
			assert.Equal(t, tt.stage, record.Stage)
			assert.Equal(t, model.VerdictError, record.Predicted)
			assert.Contains(t, record.Error, tt.contains)
			assert.True(t, record.Failed())
		})
	}
}

func TestVerifyCase_DisabledVerifier(t *testing.T) {
	p := NewPipeline(testConfig(), nil, nil)

	record := p.VerifyCase(context.Background(), model.Case{ID: "x", Claim: "c", SourceURL: "http://example.com"})
	assert.Equal(t, model.StageVerify, record.Stage)
	assert.Contains(t, record.Error, "not configured")
}

func TestExtractClaim_Markdown(t *testing.T) {
	server := newTestServer(t)
	p := newTestPipeline(t, &fakeProvider{})

	ac, err := p.ExtractClaim(context.Background(), server.URL+"/notes.md", 1, 1)
	require.NoError(t, err)

	assert.Equal(t, "Rivers flood in spring", strings.TrimSuffix(ac.Claim.Claim, "."))
	assert.Equal(t, model.ClaimStatusSpan, ac.Claim.Status)
}

func TestExtractClaim_OccurrenceClamped(t *testing.T) {
	server := newTestServer(t)
	p := newTestPipeline(t, &fakeProvider{})

	ac, err := p.ExtractClaim(context.Background(), server.URL+"/article", 1, 5)
	require.NoError(t, err)
	assert.True(t, ac.Claim.Clamped)
	assert.Equal(t, 1, ac.Claim.Occurrence)

	src, ok := ac.Source()
	require.True(t, ok)
	assert.Equal(t, server.URL+"/source", src.URL)
}

func TestArticleClaim_SourcePrefersOffSite(t *testing.T) {
	ac := &ArticleClaim{Sources: []model.Evidence{
		{URL: "https://en.wikipedia.org/wiki/Help:Cite", IsSameHost: true},
		{URL: "https://news.example.com/story"},
	}}
	src, ok := ac.Source()
	require.True(t, ok)
	assert.Equal(t, "https://news.example.com/story", src.URL)

	_, ok = (&ArticleClaim{}).Source()
	assert.False(t, ok)
}

func TestParseDocument(t *testing.T) {
	ex := extract.NewClaimExtractor(extract.DefaultExtractorConfig())

	tests := []struct {
		name        string
		location    string
		contentType string
		content     string
	}{
		{"html", "https://example.com/a", "text/html", "<p>Plain claim text here.<sup>[1]</sup></p>"},
		{"md extension", "notes.md", "", "Plain claim text here. [1]\n"},
		{"markdown type", "https://example.com/raw", "text/markdown; charset=utf-8", "Plain claim text here. [1]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.content), tt.location, tt.contentType)
			require.NoError(t, err)

			result, err := ex.Extract(doc.Root(), 1, 1)
			require.NoError(t, err)
			assert.Equal(t, "Plain claim text here.", result.Claim)
		})
	}
}

func TestLoadDocument_LocalFile(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{})
	path := filepath.Join(t.TempDir(), "article.md")
	require.NoError(t, os.WriteFile(path, []byte("Glaciers retreat each decade. [2]\n"), 0o644))

	doc, location, err := p.LoadDocument(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, location)

	markers := p.Extractor().Markers(doc.Root())
	require.Len(t, markers, 1)
	assert.Equal(t, 2, markers[0].Index)

	_, _, err = p.LoadDocument(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, model.StageFetch, se.Stage)
}

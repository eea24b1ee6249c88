package pipeline

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/extract/adapters"
	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/util"
	"github.com/ppiankov/citecheck/internal/verdict"
	"github.com/ppiankov/citecheck/internal/worker"
)

// StageError tags an error with the pipeline stage that produced it
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Pipeline orchestrates claim extraction, source resolution, fetching and
// model verification for single cases
type Pipeline struct {
	fetcher        *Fetcher
	extractor      *extract.ClaimExtractor
	registry       *adapters.Registry
	verifier       *llm.Verifier
	llmLimiter     Limiter
	includeContext bool
	forceMarkdown  bool
	runID          string
	logger         *zap.Logger
	now            func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration.
// verifier may be disabled, in which case only extraction works.
func NewPipeline(cfg *model.Config, verifier *llm.Verifier, logger *zap.Logger) *Pipeline {
	logger = logging.OrNop(logger)

	fetcher := NewFetcher(
		cfg.HTTP.Timeout,
		cfg.HTTP.UserAgent,
		cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.InsecureTLS,
		cfg.HTTP.HTTPProxy,
		cfg.HTTP.HTTPSProxy,
		cfg.HTTP.NoProxy,
	).
		WithLogger(logger.Named("fetch")).
		WithMaxRetries(cfg.HTTP.MaxRetries).
		WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize))

	if cfg.HTTP.RespectRobots {
		fetcher.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, fetcher.Client(), cfg.HTTP.Timeout, logger.Named("robots")))
	}

	if cfg.Cache.Enabled && cfg.Cache.Dir != "" {
		store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		fetcher.WithCache(cache.NewPageCache(store, cfg.Cache.DiskTTL))
	}

	return &Pipeline{
		fetcher:        fetcher,
		extractor:      extract.NewClaimExtractor(extract.ExtractorConfigFromModel(cfg.Extraction)),
		registry:       adapters.NewRegistry(),
		verifier:       verifier,
		llmLimiter:     worker.NewLimiter(cfg.RateLimiting.LLMRequestsPerSecond, cfg.RateLimiting.LLMBurstSize),
		includeContext: cfg.Prompt.IncludeContext,
		logger:         logger,
		now:            time.Now,
	}
}

// WithRunID stamps every record with a run identifier
func (p *Pipeline) WithRunID(runID string) *Pipeline {
	p.runID = runID
	return p
}

// WithMarkdown parses every article as Markdown regardless of its location
func (p *Pipeline) WithMarkdown(force bool) *Pipeline {
	p.forceMarkdown = force
	return p
}

// Extractor returns the configured claim extractor
func (p *Pipeline) Extractor() *extract.ClaimExtractor {
	return p.extractor
}

// ArticleClaim is a claim located in a fetched article together with the
// sources its marker cites
type ArticleClaim struct {
	ArticleURL string
	Claim      *model.ClaimResult
	Sources    []model.Evidence

	// ResolveErr is set when no cited source could be found
	ResolveErr error
}

// Source returns the preferred cited source: the first off-site link,
// else the first link
func (a *ArticleClaim) Source() (model.Evidence, bool) {
	if len(a.Sources) == 0 {
		return model.Evidence{}, false
	}
	for _, ev := range a.Sources {
		if !ev.IsSameHost {
			return ev, true
		}
	}
	return a.Sources[0], true
}

// ParseDocument parses an article as Markdown or HTML depending on its
// location and content type
func ParseDocument(content []byte, location, contentType string) (*extract.Document, error) {
	if isMarkdown(location, contentType) {
		return extract.ParseMarkdown(content)
	}
	return extract.ParseHTML(string(content))
}

func isMarkdown(location, contentType string) bool {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if mediaType == "text/markdown" || mediaType == "text/x-markdown" {
				return true
			}
		}
	}

	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// LoadDocument parses an article from a local path or an http(s) URL and
// returns it with its resolved location
func (p *Pipeline) LoadDocument(ctx context.Context, location string) (*extract.Document, string, error) {
	if !isRemote(location) {
		content, err := os.ReadFile(location)
		if err != nil {
			return nil, location, stageErr(model.StageFetch, err)
		}
		doc, err := p.parse(content, location, "")
		if err != nil {
			return nil, location, stageErr(model.StageExtract, err)
		}
		return doc, location, nil
	}

	page, err := p.fetcher.FetchWithRetry(ctx, location)
	if err != nil {
		return nil, location, stageErr(model.StageFetch, fmt.Errorf("article %s: %w", location, err))
	}
	doc, err := p.parse([]byte(page.HTML), page.FinalURL, page.ContentType)
	if err != nil {
		return nil, page.FinalURL, stageErr(model.StageExtract, err)
	}
	return doc, page.FinalURL, nil
}

func (p *Pipeline) parse(content []byte, location, contentType string) (*extract.Document, error) {
	if p.forceMarkdown {
		return extract.ParseMarkdown(content)
	}
	return ParseDocument(content, location, contentType)
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ExtractClaim fetches an article, extracts the claim for a citation
// occurrence and resolves the sources its marker cites. A missing source is
// reported on ResolveErr, not as an error.
func (p *Pipeline) ExtractClaim(ctx context.Context, articleURL string, index, occurrence int) (*ArticleClaim, error) {
	doc, location, err := p.LoadDocument(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	loc, err := p.extractor.Locate(doc.Root(), index, occurrence)
	if err != nil {
		return nil, stageErr(model.StageExtract, err)
	}
	if loc.Clamped {
		p.logger.Warn("occurrence not found, using first marker",
			zap.String("article", articleURL),
			zap.Int("index", index),
			zap.Int("occurrence", occurrence))
	}

	claim, err := p.extractor.ExtractAt(loc)
	if err != nil {
		return nil, stageErr(model.StageExtract, err)
	}

	result := &ArticleClaim{ArticleURL: location, Claim: claim}

	adapter := p.registry.FindAdapter(location, "")
	sources, err := adapter.ResolveSources(doc.HTML(), extract.Unwrap(loc.Marker.Node), location)
	if err != nil {
		result.ResolveErr = err
	} else {
		result.Sources = sources
	}

	p.logger.Debug("claim extracted",
		zap.String("article", location),
		zap.Int("index", index),
		zap.String("status", string(claim.Status)),
		zap.String("adapter", adapter.Name()),
		zap.Int("sources", len(result.Sources)))

	return result, nil
}

// FetchSource fetches a cited source and returns its readable text
func (p *Pipeline) FetchSource(ctx context.Context, sourceURL string) (*extract.SourcePage, error) {
	page, err := p.fetcher.FetchWithRetry(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	src, err := extract.SourceText(page.HTML)
	if err != nil {
		return nil, err
	}
	if src.Title == "" {
		src.Title = page.Subject
	}
	return src, nil
}

// VerifyCase runs one case end to end. It never returns nil: failures are
// recorded on the record with the failing stage and an Error prediction.
func (p *Pipeline) VerifyCase(ctx context.Context, c model.Case) *model.Record {
	record := &model.Record{
		CaseID:      c.ID,
		RunID:       p.runID,
		Provider:    p.verifier.ProviderName(),
		Model:       p.verifier.Model(),
		Claim:       strings.TrimSpace(c.Claim),
		SourceURL:   strings.TrimSpace(c.SourceURL),
		GroundTruth: verdict.Normalize(c.GroundTruth),
		Predicted:   model.VerdictError,
	}

	if err := p.verifyInto(ctx, c, record); err != nil {
		record.Predicted = model.VerdictError
		record.Stage = model.StageVerify
		var se *StageError
		if errors.As(err, &se) {
			record.Stage = se.Stage
			err = se.Err
		}
		record.Error = err.Error()
	}

	record.CompletedAt = p.now().UTC()
	return record
}

func (p *Pipeline) verifyInto(ctx context.Context, c model.Case, record *model.Record) error {
	if !p.verifier.IsEnabled() {
		return stageErr(model.StageVerify, llm.ErrDisabled)
	}

	var blockText string
	if record.Claim == "" || record.SourceURL == "" {
		if c.ArticleURL == "" {
			if record.Claim == "" {
				return stageErr(model.StageExtract, errors.New("case has neither claim text nor article URL"))
			}
			return stageErr(model.StageResolve, errors.New("case has neither source URL nor article URL"))
		}

		ac, err := p.ExtractClaim(ctx, c.ArticleURL, c.Index, c.Occurrence)
		if err != nil {
			return err
		}

		if record.Claim == "" {
			record.ClaimStatus = ac.Claim.Status
			if ac.Claim.IsEmpty() {
				return stageErr(model.StageExtract, fmt.Errorf("citation [%d] occurrence %d: empty claim", c.Index, c.Occurrence))
			}
			record.Claim = ac.Claim.Claim
		}
		blockText = ac.Claim.BlockText

		if record.SourceURL == "" {
			src, ok := ac.Source()
			if !ok {
				if ac.ResolveErr == nil {
					ac.ResolveErr = adapters.ErrNoSources
				}
				return stageErr(model.StageResolve, ac.ResolveErr)
			}
			record.SourceURL = src.URL
		}
	}

	in := llm.PromptInput{
		Claim:     record.Claim,
		SourceURL: record.SourceURL,
	}
	if p.includeContext {
		in.Context = blockText
	}

	src, err := p.FetchSource(ctx, record.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return stageErr(model.StageFetch, err)
		}
		record.SourceError = err.Error()
		in.SourceError = err.Error()
		p.logger.Info("source unavailable", zap.String("case_id", c.ID), zap.String("url", record.SourceURL), zap.Error(err))
	} else {
		in.SourceTitle = src.Title
		in.SourceText = src.Text
	}

	if p.llmLimiter != nil {
		if err := p.llmLimiter.WaitKey(ctx, p.verifier.ProviderName()); err != nil {
			return stageErr(model.StageVerify, err)
		}
	}

	v, err := p.verifier.Check(ctx, in)
	if v != nil {
		record.LatencyMS = v.Latency.Milliseconds()
		record.TokensUsed = v.TokensUsed
		if v.Model != "" {
			record.Model = v.Model
		}
		if v.Response != nil {
			record.RawVerdict = v.Response.RawVerdict
		}
	}
	if err != nil {
		if errors.Is(err, verdict.ErrUnparseableResponse) {
			return stageErr(model.StageParse, err)
		}
		return stageErr(model.StageVerify, err)
	}

	resp := v.Response
	record.Predicted = resp.Verdict
	record.Confidence = resp.Confidence
	record.ConfidenceInvalid = resp.InvalidConfidence
	record.Comments = resp.Comments

	p.logger.Debug("case verified",
		zap.String("case_id", c.ID),
		zap.String("predicted", string(resp.Verdict)),
		zap.String("ground_truth", string(record.GroundTruth)),
		zap.Int64("latency_ms", record.LatencyMS))

	return nil
}

// Package extractor turns a document into a schema.Batch. Short texts are
// extracted directly, long ones through the client's scaling mode with a
// sequential chunked fallback. Malformed replies are narrowed, rate limits
// get one delayed retry and every unit's outcome lands in a Report.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"bunseki/pkg/chunk"
	"bunseki/pkg/config"
	"bunseki/pkg/extraction"
	"bunseki/pkg/inference"
	"bunseki/pkg/metrics"
	"bunseki/pkg/schema"
)

// Client is the extraction call the orchestrator drives.
type Client interface {
	Extract(ctx context.Context, req extraction.Request) ([]extraction.Extraction, error)
}

type Extractor struct {
	client  Client
	cfg     config.ExtractConfig
	Prompts map[schema.Kind]Prompt

	// Sleep waits between chunks and before rate-limit retries.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg config.ExtractConfig, client Client) *Extractor {
	return &Extractor{
		client:  client,
		cfg:     cfg,
		Prompts: DefaultPrompts(),
		Sleep:   sleep,
	}
}

// IsFatal reports whether err must end the run: configuration errors and
// cancellation. Everything else is recovered per unit.
func IsFatal(err error) bool {
	return errors.Is(err, config.ErrMissingCredential) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ExtractAll produces the batch for text. The returned error is always fatal
// (see IsFatal); recoverable failures are only visible in the Report.
func (e *Extractor) ExtractAll(ctx context.Context, text string) (schema.Batch, *Report, error) {
	report := newReport()
	defer func() { report.FinishedAt = time.Now() }()

	length := chunk.Len(text)
	log.Info("starting extraction", "run", report.RunID, "chars", length)

	if length <= e.cfg.MaxChunkSize {
		report.Strategy = StrategyDirect
		batch, err := e.direct(ctx, text, report)
		return batch, report, err
	}

	if e.cfg.UseScaling {
		batch, err := e.scaled(ctx, text, report)
		if err == nil {
			report.Strategy = StrategyScaled
			return batch, report, nil
		}
		if e.fatal(ctx, err) {
			return schema.Batch{}, report, err
		}
		log.Warn("scaled extraction failed, falling back to chunks", "error", err)
		report.Fallback = err.Error()
		report.Units = nil
	}

	report.Strategy = StrategyChunked
	batch, err := e.chunked(ctx, text, report)
	return batch, report, err
}

func (e *Extractor) direct(ctx context.Context, text string, report *Report) (schema.Batch, error) {
	var batch schema.Batch
	for _, kind := range schema.Kinds {
		res, err := e.extractKind(ctx, kind, text)
		if err != nil {
			if e.fatal(ctx, err) {
				return batch, err
			}
			res = result{status: StatusSkipped, reason: err.Error()}
		}
		e.record(report, &batch, 0, kind, res)
	}
	return batch, nil
}

func (e *Extractor) scaled(ctx context.Context, text string, report *Report) (schema.Batch, error) {
	log.Info("using scaled extraction", "passes", e.cfg.ExtractionPasses, "workers", e.cfg.MaxWorkers, "buffer", e.cfg.MaxCharBuffer)

	var batch schema.Batch
	for _, kind := range schema.Kinds {
		req := e.request(kind, text)
		req.Passes = e.cfg.ExtractionPasses
		req.Workers = e.cfg.MaxWorkers
		req.BufferSize = e.cfg.MaxCharBuffer

		exts, err := e.client.Extract(ctx, req)
		if err != nil {
			metrics.ExtractionCalls.WithLabelValues(string(kind), outcome(err)).Inc()
			return schema.Batch{}, fmt.Errorf("scaled %s extraction: %w", kind, err)
		}
		metrics.ExtractionCalls.WithLabelValues(string(kind), metrics.OutcomeSuccess).Inc()
		e.record(report, &batch, 0, kind, result{exts: exts, status: StatusSuccess})
	}
	return batch, nil
}

func (e *Extractor) chunked(ctx context.Context, text string, report *Report) (schema.Batch, error) {
	chunks := chunk.Split(text, e.cfg.MaxChunkSize)
	report.Chunks = len(chunks)
	log.Info("using chunked extraction", "chunks", len(chunks), "size", e.cfg.MaxChunkSize)

	var batch schema.Batch
	for i, c := range chunks {
		n := i + 1
		if i > 0 {
			if err := e.Sleep(ctx, e.cfg.ChunkDelay); err != nil {
				return batch, err
			}
		}
		log.Info("processing chunk", "chunk", n, "of", len(chunks), "chars", chunk.Len(c))

		if err := e.processChunk(ctx, n, c, report, &batch); err != nil {
			return batch, err
		}
		log.Debug("chunk done", "chunk", n, "status", report.ChunkStatus(n))
	}

	before := len(batch.Characters) + len(batch.Relationships)
	batch.Characters = schema.DedupeCharacters(batch.Characters)
	batch.Relationships = schema.DedupeRelationships(batch.Relationships)
	log.Info("merged chunk results", "characters", len(batch.Characters), "emotions", len(batch.Emotions),
		"relationships", len(batch.Relationships), "duplicates", before-len(batch.Characters)-len(batch.Relationships))

	return batch, nil
}

// processChunk runs every kind over one chunk. A chunk gets at most one
// rate-limit cooldown and retry across all its kinds. It only returns fatal
// errors.
func (e *Extractor) processChunk(ctx context.Context, n int, text string, report *Report, batch *schema.Batch) error {
	retried := false
	for ki, kind := range schema.Kinds {
		res, err := e.extractKind(ctx, kind, text)
		if err != nil && !e.fatal(ctx, err) && inference.IsRateLimited(err) {
			if retried {
				log.Warn("rate limited again after retry, skipping rest of chunk", "chunk", n, "kind", kind, "error", err)
				e.record(report, batch, n, kind, result{status: StatusSkipped, reason: "rate limited after retry: " + err.Error()})
				e.abandon(report, n, schema.Kinds[ki+1:], kind)
				return nil
			}
			retried = true
			log.Warn("rate limited, cooling down before retry", "chunk", n, "kind", kind, "wait", e.cfg.RateLimitCooldown)
			metrics.RateLimitRetries.Inc()
			if serr := e.Sleep(ctx, e.cfg.RateLimitCooldown); serr != nil {
				return serr
			}
			res, err = e.extractKind(ctx, kind, text)
			if err != nil && !e.fatal(ctx, err) {
				log.Warn("retry after rate limit failed, skipping rest of chunk", "chunk", n, "kind", kind, "error", err)
				e.record(report, batch, n, kind, result{status: StatusSkipped, reason: "rate limited after retry: " + err.Error()})
				e.abandon(report, n, schema.Kinds[ki+1:], kind)
				return nil
			}
		}
		if err != nil {
			if e.fatal(ctx, err) {
				return err
			}
			log.Warn("chunk failed, skipping rest of chunk", "chunk", n, "kind", kind, "error", err)
			e.record(report, batch, n, kind, result{status: StatusSkipped, reason: err.Error()})
			e.abandon(report, n, schema.Kinds[ki+1:], kind)
			return nil
		}
		e.record(report, batch, n, kind, res)
	}
	return nil
}

func (e *Extractor) abandon(report *Report, n int, kinds []schema.Kind, after schema.Kind) {
	for _, k := range kinds {
		e.record(report, nil, n, k, result{status: StatusSkipped, reason: fmt.Sprintf("chunk abandoned after %s failed", after)})
	}
}

type result struct {
	exts   []extraction.Extraction
	status Status
	reason string
}

// extractKind makes one call and recovers malformed replies by narrowing.
// Any other error is returned for the caller to classify.
func (e *Extractor) extractKind(ctx context.Context, kind schema.Kind, text string) (result, error) {
	exts, err := e.client.Extract(ctx, e.request(kind, text))
	metrics.ExtractionCalls.WithLabelValues(string(kind), outcome(err)).Inc()
	if err == nil {
		return result{exts: exts, status: StatusSuccess}, nil
	}
	if !errors.Is(err, extraction.ErrMalformed) {
		return result{}, err
	}
	return e.narrow(ctx, kind, text, err)
}

// narrow re-splits text at NarrowSize and tries at most NarrowAttempts of
// the pieces once each. Failures of individual pieces are dropped.
func (e *Extractor) narrow(ctx context.Context, kind schema.Kind, text string, cause error) (result, error) {
	if chunk.Len(text) <= e.cfg.NarrowSize {
		log.Warn("malformed output on short text, giving up", "kind", kind, "error", cause)
		return result{status: StatusSkipped, reason: "malformed output"}, nil
	}

	pieces := chunk.Split(text, e.cfg.NarrowSize)
	total := len(pieces)
	if len(pieces) > e.cfg.NarrowAttempts {
		pieces = pieces[:e.cfg.NarrowAttempts]
	}
	log.Warn("malformed output, narrowing", "kind", kind, "pieces", len(pieces), "of", total)

	var exts []extraction.Extraction
	ok := 0
	for i, p := range pieces {
		metrics.NarrowingAttempts.Inc()
		out, err := e.client.Extract(ctx, e.request(kind, p))
		metrics.ExtractionCalls.WithLabelValues(string(kind), outcome(err)).Inc()
		if err != nil {
			if e.fatal(ctx, err) {
				return result{}, err
			}
			log.Debug("narrowed piece failed", "kind", kind, "piece", i+1, "error", err)
			continue
		}
		ok++
		exts = append(exts, out...)
	}

	res := result{exts: exts, reason: fmt.Sprintf("narrowed: %d of %d pieces extracted", ok, total)}
	switch {
	case ok == 0:
		res.status = StatusSkipped
	case ok == total:
		res.status = StatusSuccess
	default:
		res.status = StatusPartial
	}
	return res, nil
}

func (e *Extractor) request(kind schema.Kind, text string) extraction.Request {
	p := e.Prompts[kind]
	return extraction.Request{
		Kind:     kind,
		Text:     text,
		Prompt:   p.Description,
		Examples: p.Examples,
	}
}

// record adds res to batch (when given) and to the report.
func (e *Extractor) record(report *Report, batch *schema.Batch, n int, kind schema.Kind, res result) {
	added := 0
	if batch != nil {
		added = batch.Add(kind, res.exts)
	}
	if res.status == StatusSkipped {
		metrics.SkippedUnits.WithLabelValues(string(kind)).Inc()
	}
	report.add(Unit{Chunk: n, Kind: kind, Status: res.status, Reason: res.reason, Records: added})
}

// fatal also treats any error as fatal once ctx is done.
func (e *Extractor) fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || IsFatal(err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, extraction.ErrMalformed):
		return metrics.OutcomeMalformed
	case inference.IsRateLimited(err):
		return metrics.OutcomeRateLimited
	}
	return metrics.OutcomeError
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

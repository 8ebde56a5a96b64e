package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"

	"bunseki/pkg/chunk"
	"bunseki/pkg/config"
	"bunseki/pkg/extraction"
	"bunseki/pkg/inference"
	"bunseki/pkg/schema"
)

type fakeClient struct {
	mu    sync.Mutex
	calls []extraction.Request
	fn    func(n int, req extraction.Request) ([]extraction.Extraction, error)
}

func (f *fakeClient) Extract(_ context.Context, req extraction.Request) ([]extraction.Extraction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(n, req)
}

func (f *fakeClient) callsFor(kind schema.Kind) []extraction.Request {
	var out []extraction.Request
	for _, c := range f.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ok returns one record per call, named after the first rune of the text.
func ok(_ int, req extraction.Request) ([]extraction.Extraction, error) {
	name := string([]rune(req.Text)[:1])
	switch req.Kind {
	case schema.KindCharacter:
		return []extraction.Extraction{{Class: "character", Text: name}}, nil
	case schema.KindEmotion:
		return []extraction.Extraction{{Class: "emotion", Text: req.Text, Attributes: map[string]any{"subject": name}}}, nil
	default:
		return []extraction.Extraction{{Class: "relationship", Attributes: map[string]any{"person1": name, "person2": "妹", "relation_type": "兄妹"}}}, nil
	}
}

type sleeper struct {
	waits []time.Duration
	err   error
}

func (s *sleeper) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return s.err
}

func newTest(cfg config.ExtractConfig, fn func(int, extraction.Request) ([]extraction.Extraction, error)) (*Extractor, *fakeClient, *sleeper) {
	fc := &fakeClient{fn: fn}
	sl := &sleeper{}
	e := New(cfg, fc)
	e.Sleep = sl.sleep
	return e, fc, sl
}

// text builds n sentences of size runes each, terminator included. Each
// sentence repeats its own letter so chunks can be told apart.
func text(n, size int) string {
	letters := []rune("あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほまみむめもやゆよらりるれろわ")
	var b strings.Builder
	for i := range n {
		b.WriteString(strings.Repeat(string(letters[i%len(letters)]), size-1))
		b.WriteString("。")
	}
	return b.String()
}

func TestExtractAll_ShortTextDirectOncePerKind(t *testing.T) {
	e, fc, sl := newTest(config.Defaults().Extract, ok)

	src := "メロスは激怒した。必ず、かの邪智暴虐の王を除かなければならぬと決意した。"
	batch, report, err := e.ExtractAll(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Strategy != StrategyDirect {
		t.Errorf("strategy = %s", report.Strategy)
	}
	if len(fc.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(fc.calls))
	}
	for i, kind := range schema.Kinds {
		c := fc.calls[i]
		if c.Kind != kind || c.Text != src || c.Passes != 0 || c.Workers != 0 || c.BufferSize != 0 {
			t.Errorf("call %d = %+v", i, c)
		}
	}
	if len(sl.waits) != 0 {
		t.Errorf("direct mode must not wait, got %v", sl.waits)
	}
	if len(batch.Characters) != 1 || len(batch.Emotions) != 1 || len(batch.Relationships) != 1 {
		t.Errorf("batch = %+v", batch)
	}
	if report.RunID == "" || len(report.Units) != 3 || len(report.Lost()) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestExtractAll_ThresholdIsInclusive(t *testing.T) {
	e, fc, _ := newTest(config.Defaults().Extract, ok)
	src := text(30, 100)
	if chunk.Len(src) != 3000 {
		t.Fatalf("test text has %d runes", chunk.Len(src))
	}
	_, report, err := e.ExtractAll(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if report.Strategy != StrategyDirect || len(fc.calls) != 3 {
		t.Errorf("strategy %s with %d calls", report.Strategy, len(fc.calls))
	}
}

func TestExtractAll_LongTextTriesScaledFirst(t *testing.T) {
	cfg := config.Defaults().Extract
	e, fc, sl := newTest(cfg, ok)

	_, report, err := e.ExtractAll(context.Background(), text(35, 100))
	if err != nil {
		t.Fatal(err)
	}
	if report.Strategy != StrategyScaled {
		t.Fatalf("strategy = %s", report.Strategy)
	}
	if len(fc.calls) != 3 {
		t.Fatalf("expected one scaled call per kind, got %d", len(fc.calls))
	}
	first := fc.calls[0]
	if first.Passes != cfg.ExtractionPasses || first.Workers != cfg.MaxWorkers || first.BufferSize != cfg.MaxCharBuffer {
		t.Errorf("scaled call missing scaling options: %+v", first)
	}
	if len(sl.waits) != 0 {
		t.Errorf("scaled mode must not wait, got %v", sl.waits)
	}
}

func TestExtractAll_ScaledFailureFallsBackToChunks(t *testing.T) {
	cfg := config.Defaults().Extract
	e, fc, sl := newTest(cfg, func(n int, req extraction.Request) ([]extraction.Extraction, error) {
		if req.Passes > 0 && req.Kind == schema.KindRelationship {
			return nil, errors.New("worker crashed")
		}
		if req.Kind == schema.KindCharacter && req.Passes == 0 {
			// both chunks report the same character with different spacing
			return []extraction.Extraction{{Class: "character", Text: "メロス"}, {Class: "character", Text: "メ ロス"}}, nil
		}
		return ok(n, req)
	})

	batch, report, err := e.ExtractAll(context.Background(), text(35, 100))
	if err != nil {
		t.Fatal(err)
	}
	if report.Strategy != StrategyChunked || report.Chunks != 2 {
		t.Fatalf("strategy %s chunks %d", report.Strategy, report.Chunks)
	}
	if !strings.Contains(report.Fallback, "worker crashed") {
		t.Errorf("fallback reason = %q", report.Fallback)
	}
	// 3 scaled calls, then 2 chunks x 3 kinds
	if len(fc.calls) != 9 {
		t.Errorf("expected 9 calls, got %d", len(fc.calls))
	}
	if len(sl.waits) != 1 || sl.waits[0] != cfg.ChunkDelay {
		t.Errorf("expected one inter-chunk delay, got %v", sl.waits)
	}
	if len(batch.Characters) != 1 {
		t.Errorf("characters should be deduplicated, got %+v", batch.Characters)
	}
	if len(batch.Emotions) != 2 {
		t.Errorf("emotions are never deduplicated, got %d", len(batch.Emotions))
	}
	for _, u := range report.Units {
		if u.Chunk == 0 {
			t.Errorf("scaled units should be dropped after fallback: %+v", u)
		}
	}
}

func TestExtractAll_RateLimitRecovery(t *testing.T) {
	cfg := config.Defaults().Extract
	cfg.UseScaling = false
	limited := false
	e, fc, sl := newTest(cfg, func(n int, req extraction.Request) ([]extraction.Extraction, error) {
		if req.Kind == schema.KindCharacter && strings.HasPrefix(req.Text, "ま") && !limited {
			limited = true
			return nil, fmt.Errorf("failed to generate content: Error 429, RESOURCE_EXHAUSTED")
		}
		return ok(n, req)
	})

	// 30 sentences per chunk, the second chunk starts with the 31st letter ま
	src := text(60, 100)
	batch, report, err := e.ExtractAll(context.Background(), src)
	if err != nil {
		t.Fatalf("run should not abort: %v", err)
	}
	if report.Chunks != 2 {
		t.Fatalf("chunks = %d", report.Chunks)
	}
	if len(fc.callsFor(schema.KindCharacter)) != 3 {
		t.Errorf("expected the limited call to be retried once, got %d character calls", len(fc.callsFor(schema.KindCharacter)))
	}
	if len(sl.waits) != 2 || sl.waits[1] != cfg.RateLimitCooldown {
		t.Errorf("waits = %v, want chunk delay then cooldown", sl.waits)
	}
	names := map[string]bool{}
	for _, c := range batch.Characters {
		names[c.Name] = true
	}
	if !names["ま"] {
		t.Errorf("second chunk's characters missing: %+v", batch.Characters)
	}
	if len(report.Lost()) != 0 {
		t.Errorf("nothing should be lost: %+v", report.Lost())
	}
}

func TestExtractAll_RateLimitTwiceDropsChunk(t *testing.T) {
	cfg := config.Defaults().Extract
	cfg.UseScaling = false
	e, fc, sl := newTest(cfg, func(n int, req extraction.Request) ([]extraction.Extraction, error) {
		if req.Kind == schema.KindEmotion && strings.HasPrefix(req.Text, "ま") {
			return nil, fmt.Errorf("chunk: %w", inference.ErrRateLimited)
		}
		return ok(n, req)
	})

	batch, report, err := e.ExtractAll(context.Background(), text(90, 100))
	if err != nil {
		t.Fatalf("run should not abort: %v", err)
	}
	if report.Chunks != 3 {
		t.Fatalf("chunks = %d", report.Chunks)
	}
	if got := len(fc.callsFor(schema.KindEmotion)); got != 4 {
		t.Errorf("emotion calls = %d, want 1 + retry + 1 + 1", got)
	}
	if got := len(fc.callsFor(schema.KindRelationship)); got != 2 {
		t.Errorf("relationship calls = %d, the dropped chunk must not continue", got)
	}
	if len(sl.waits) != 3 {
		t.Errorf("waits = %v", sl.waits)
	}
	lost := report.Lost()
	if len(lost) != 2 || lost[0].Chunk != 2 || lost[0].Kind != schema.KindEmotion || !strings.Contains(lost[0].Reason, "rate limited") {
		t.Errorf("lost = %+v", lost)
	}
	if report.ChunkStatus(2) != StatusPartial || report.ChunkStatus(3) != StatusSuccess {
		t.Errorf("chunk statuses %s %s", report.ChunkStatus(2), report.ChunkStatus(3))
	}
	if len(batch.Emotions) != 2 || len(batch.Characters) != 3 {
		t.Errorf("batch emotions %d characters %d", len(batch.Emotions), len(batch.Characters))
	}
}

func TestExtractAll_OneRateLimitRetryPerChunk(t *testing.T) {
	cfg := config.Defaults().Extract
	cfg.UseScaling = false
	limited := map[schema.Kind]bool{}
	e, fc, sl := newTest(cfg, func(n int, req extraction.Request) ([]extraction.Extraction, error) {
		if strings.HasPrefix(req.Text, "ま") && !limited[req.Kind] {
			limited[req.Kind] = true
			return nil, fmt.Errorf("chunk: %w", inference.ErrRateLimited)
		}
		return ok(n, req)
	})

	batch, report, err := e.ExtractAll(context.Background(), text(60, 100))
	if err != nil {
		t.Fatalf("run should not abort: %v", err)
	}
	if report.Chunks != 2 {
		t.Fatalf("chunks = %d", report.Chunks)
	}
	// chunk 1: 3 calls; chunk 2: character + its retry, then emotion throttled again
	if len(fc.calls) != 6 {
		t.Errorf("calls = %d, want 6", len(fc.calls))
	}
	cooldowns := 0
	for _, w := range sl.waits {
		if w == cfg.RateLimitCooldown {
			cooldowns++
		}
	}
	if cooldowns != 1 || len(sl.waits) != 2 {
		t.Errorf("waits = %v, want one chunk delay and one cooldown", sl.waits)
	}
	if got := len(fc.callsFor(schema.KindRelationship)); got != 1 {
		t.Errorf("relationship calls = %d, the rest of chunk 2 must be abandoned", got)
	}
	lost := report.Lost()
	if len(lost) != 2 || lost[0].Chunk != 2 || lost[0].Kind != schema.KindEmotion || !strings.Contains(lost[0].Reason, "rate limited") {
		t.Errorf("lost = %+v", lost)
	}
	if report.ChunkStatus(2) != StatusPartial {
		t.Errorf("chunk 2 status = %s", report.ChunkStatus(2))
	}
	if len(batch.Characters) != 2 || len(batch.Emotions) != 1 {
		t.Errorf("batch characters %d emotions %d", len(batch.Characters), len(batch.Emotions))
	}
}

func TestExtractAll_OtherErrorAbortsOnlyThatChunk(t *testing.T) {
	cfg := config.Defaults().Extract
	cfg.UseScaling = false
	e, _, _ := newTest(cfg, func(n int, req extraction.Request) ([]extraction.Extraction, error) {
		if req.Kind == schema.KindCharacter && strings.HasPrefix(req.Text, "あ") {
			return nil, errors.New("connection reset by peer")
		}
		return ok(n, req)
	})

	batch, report, err := e.ExtractAll(context.Background(), text(60, 100))
	if err != nil {
		t.Fatal(err)
	}
	if report.ChunkStatus(1) != StatusSkipped || report.ChunkStatus(2) != StatusSuccess {
		t.Errorf("chunk statuses %s %s", report.ChunkStatus(1), report.ChunkStatus(2))
	}
	if len(report.Lost()) != 3 {
		t.Errorf("lost = %+v", report.Lost())
	}
	if len(batch.Characters) != 1 || len(batch.Emotions) != 1 {
		t.Errorf("batch = %+v", batch)
	}
}

func TestNarrowing_RecoversLongText(t *testing.T) {
	cfg := config.Defaults().Extract
	e, fc, _ := newTest(cfg, func(n int, req extraction.Request) ([]extraction.Extraction, error) {
		if chunk.Len(req.Text) > 1000 {
			return nil, fmt.Errorf("%w: unexpected end of JSON input", extraction.ErrMalformed)
		}
		return ok(n, req)
	})

	src := text(50, 50)
	if chunk.Len(src) != 2500 {
		t.Fatalf("test text has %d runes", chunk.Len(src))
	}
	batch, report, err := e.ExtractAll(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	for _, kind := range schema.Kinds {
		calls := fc.callsFor(kind)
		sub := 0
		for _, c := range calls[1:] {
			if chunk.Len(c.Text) > 1000 {
				t.Errorf("narrowed call over 1000 runes")
			}
			sub++
		}
		if sub == 0 || sub > 3 {
			t.Errorf("%s: %d sub-chunk attempts", kind, sub)
		}
	}
	if len(batch.Characters) == 0 || len(batch.Emotions) == 0 || len(batch.Relationships) == 0 {
		t.Errorf("narrowing should yield records: %+v", batch)
	}
	if len(report.Lost()) != 0 {
		t.Errorf("lost = %+v", report.Lost())
	}
}

func TestNarrowing_AttemptBudget(t *testing.T) {
	cfg := config.Defaults().Extract
	cfg.NarrowSize = 500
	e, fc, _ := newTest(cfg, func(n int, req extraction.Request) ([]extraction.Extraction, error) {
		if chunk.Len(req.Text) > 500 {
			return nil, extraction.ErrMalformed
		}
		if strings.HasPrefix(req.Text, "さ") {
			return nil, extraction.ErrMalformed
		}
		return ok(n, req)
	})

	_, report, err := e.ExtractAll(context.Background(), text(50, 50))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(fc.callsFor(schema.KindEmotion)); got != 4 {
		t.Errorf("expected 1 call + 3 narrowed attempts, got %d", got)
	}
	for _, u := range report.Units {
		if u.Status != StatusPartial || !strings.Contains(u.Reason, "of 5 pieces") {
			t.Errorf("unit = %+v", u)
		}
	}
}

func TestNarrowing_ShortTextGivesUp(t *testing.T) {
	e, fc, _ := newTest(config.Defaults().Extract, func(int, extraction.Request) ([]extraction.Extraction, error) {
		return nil, extraction.ErrMalformed
	})

	batch, report, err := e.ExtractAll(context.Background(), text(5, 100))
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.calls) != 3 {
		t.Errorf("short text must not be retried, got %d calls", len(fc.calls))
	}
	if len(report.Lost()) != 3 || batch.Len(schema.KindCharacter) != 0 {
		t.Errorf("report %+v batch %+v", report, batch)
	}
}

func TestExtractAll_MissingCredentialIsFatal(t *testing.T) {
	cfgErr := fmt.Errorf("%w: GOOGLE_API_KEY", config.ErrMissingCredential)
	e, fc, _ := newTest(config.Defaults().Extract, func(int, extraction.Request) ([]extraction.Extraction, error) {
		return nil, cfgErr
	})

	_, _, err := e.ExtractAll(context.Background(), text(60, 100))
	if !errors.Is(err, config.ErrMissingCredential) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if len(fc.calls) != 1 {
		t.Errorf("fatal error must stop immediately, got %d calls", len(fc.calls))
	}
}

func TestExtractAll_CancelledDuringDelay(t *testing.T) {
	cfg := config.Defaults().Extract
	cfg.UseScaling = false
	e, fc, sl := newTest(cfg, ok)
	sl.err = context.Canceled

	_, _, err := e.ExtractAll(context.Background(), text(60, 100))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(fc.calls) != 3 {
		t.Errorf("only the first chunk should run, got %d calls", len(fc.calls))
	}
}

type replyInferencer func(system, user string) string

func (r replyInferencer) Infer(_ context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	return r(system, user), nil
}

func TestExtractAll_MelosAnger(t *testing.T) {
	src := "メロスは激怒した。必ず、かの邪智暴虐の王を除かなければならぬと決意した。"
	inf := replyInferencer(func(system, user string) string {
		switch {
		case strings.Contains(system, `"extraction_class":"emotion"`):
			return "```json\n" + `{"extractions":[{"extraction_class":"emotion","extraction_text":"メロスは激怒した","attributes":{"emotion_type":"怒り","subject":"メロス","target":"王","intensity":"強い"}}]}` + "\n```"
		case strings.Contains(system, `"extraction_class":"relationship"`):
			return `{"extractions":[]}`
		default:
			return `{"extractions":[{"extraction_class":"character","extraction_text":"メロス","attributes":{"gender":"男性"}}]}`
		}
	})
	client := extraction.New(inf, "test-model")
	client.EstimateTokens = func(s string) int { return len(s) }

	e := New(config.Defaults().Extract, client)
	batch, _, err := e.ExtractAll(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, em := range batch.Emotions {
		if em.Subject == "メロス" && strings.Contains(em.EmotionType, "怒") && em.Quote == "メロスは激怒した" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an anger emotion for メロス, got %+v", batch.Emotions)
	}
	if len(batch.Characters) != 1 || batch.Characters[0].Gender != schema.Male {
		t.Errorf("characters = %+v", batch.Characters)
	}
}

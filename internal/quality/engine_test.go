package quality

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeTexts struct {
	byID map[string]TranslationText
}

func (f *fakeTexts) GetTranslationText(_ context.Context, id string) (TranslationText, error) {
	text, ok := f.byID[id]
	if !ok {
		return TranslationText{}, errors.New("translation not found")
	}
	return text, nil
}

type fakeScores struct {
	byID    map[string]Score
	upserts int
}

func (f *fakeScores) GetScore(_ context.Context, id string) (*Score, error) {
	if s, ok := f.byID[id]; ok {
		out := s
		return &out, nil
	}
	return nil, nil
}

func (f *fakeScores) UpsertScore(_ context.Context, s Score) error {
	if f.byID == nil {
		f.byID = map[string]Score{}
	}
	f.byID[s.TranslationID] = s
	f.upserts++
	return nil
}

type fakeGenerator struct {
	calls int
	text  string
	err   error
}

func (f *fakeGenerator) GenerateText(_ context.Context, model, _ string) (Generation, error) {
	f.calls++
	if f.err != nil {
		return Generation{}, f.err
	}
	return Generation{Text: f.text, Provider: "openrouter", Model: model, InputTokens: 120, OutputTokens: 30}, nil
}

func newTestEngine(texts *fakeTexts, scores *fakeScores, gen TextGenerator) *Engine {
	e := NewEngine(texts, scores, gen)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

// P1: a second evaluation of unchanged content is a cache hit - identical
// score, no model call, no new row.
func TestEvaluateCacheHit(t *testing.T) {
	texts := &fakeTexts{byID: map[string]TranslationText{
		"tr_1": {ID: "tr_1", Language: "de", SourceText: "Hello {name}!", TargetText: "Hallo {name}!"},
	}}
	scores := &fakeScores{}
	gen := &fakeGenerator{text: `{"accuracy":90,"fluency":90,"terminology":90,"issues":[]}`}
	engine := newTestEngine(texts, scores, gen)
	cfg := Config{AIEnabled: true, Model: "quality-rater-1"}

	first, err := engine.Evaluate(context.Background(), "tr_1", cfg)
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	if first.Cached {
		t.Error("first evaluation must not be cached")
	}
	if gen.calls != 1 {
		t.Fatalf("expected one model call, got %d", gen.calls)
	}

	second, err := engine.Evaluate(context.Background(), "tr_1", cfg)
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	if !second.Cached {
		t.Error("second evaluation must be served from cache")
	}
	if second.Score != first.Score {
		t.Errorf("cached score %d differs from original %d", second.Score, first.Score)
	}
	if gen.calls != 1 {
		t.Errorf("cache hit must not invoke the model, calls = %d", gen.calls)
	}
	if scores.upserts != 1 {
		t.Errorf("cache hit must not rewrite the row, upserts = %d", scores.upserts)
	}
}

func TestEvaluateContentChangeInvalidatesCache(t *testing.T) {
	texts := &fakeTexts{byID: map[string]TranslationText{
		"tr_1": {ID: "tr_1", Language: "de", SourceText: "Hello!", TargetText: "Hallo!"},
	}}
	scores := &fakeScores{}
	engine := newTestEngine(texts, scores, nil)

	if _, err := engine.Evaluate(context.Background(), "tr_1", Config{}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	texts.byID["tr_1"] = TranslationText{ID: "tr_1", Language: "de", SourceText: "Hello!", TargetText: "Servus!"}
	score, err := engine.Evaluate(context.Background(), "tr_1", Config{})
	if err != nil {
		t.Fatalf("Evaluate after edit failed: %v", err)
	}
	if score.Cached {
		t.Error("edited content must be rescored")
	}
	if scores.upserts != 2 {
		t.Errorf("upserts = %d, want 2", scores.upserts)
	}
	if len(scores.byID) != 1 {
		t.Errorf("re-evaluation must overwrite, not duplicate: %d rows", len(scores.byID))
	}
}

func TestEvaluateAIPath(t *testing.T) {
	texts := &fakeTexts{byID: map[string]TranslationText{
		"tr_1": {ID: "tr_1", Language: "de", SourceText: "Hello {name}!", TargetText: "Hallo {name}!"},
	}}
	scores := &fakeScores{}
	gen := &fakeGenerator{text: "```json\n{\"accuracy\":95,\"fluency\":88,\"terminology\":120,\"issues\":[{\"type\":\"style\",\"severity\":\"silly\",\"message\":\"m\"}]}\n```"}
	engine := newTestEngine(texts, scores, gen)

	score, err := engine.Evaluate(context.Background(), "tr_1", Config{AIEnabled: true, Model: "quality-rater-1"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if score.EvaluationType != EvaluationAI {
		t.Errorf("EvaluationType = %q, want ai", score.EvaluationType)
	}
	if *score.Terminology != 100 {
		t.Errorf("sub-scores must be clamped to 100, got %d", *score.Terminology)
	}
	// Rounded mean of 95, 88, 100.
	if score.Score != 94 {
		t.Errorf("overall = %d, want 94", score.Score)
	}
	if score.Provider != "openrouter" || score.Model != "quality-rater-1" {
		t.Errorf("provider/model not recorded: %+v", score)
	}
	if score.InputTokens != 120 || score.OutputTokens != 30 {
		t.Errorf("token usage not recorded: %+v", score)
	}
	if len(score.Issues) != 1 || score.Issues[0].Severity != SeverityWarning {
		t.Errorf("unknown severities must normalize to warning: %+v", score.Issues)
	}
}

func TestEvaluateAIFailureFallsBackToHeuristic(t *testing.T) {
	texts := &fakeTexts{byID: map[string]TranslationText{
		"tr_1": {ID: "tr_1", Language: "de", SourceText: "Hello {name}!", TargetText: "Hallo {name}!"},
	}}
	scores := &fakeScores{}
	gen := &fakeGenerator{err: errors.New("provider unreachable")}
	engine := newTestEngine(texts, scores, gen)

	score, err := engine.Evaluate(context.Background(), "tr_1", Config{AIEnabled: true, Model: "quality-rater-1"})
	if err != nil {
		t.Fatalf("Evaluate must degrade, not fail: %v", err)
	}
	if score.EvaluationType != EvaluationHeuristic {
		t.Errorf("EvaluationType = %q, want heuristic", score.EvaluationType)
	}
	if score.Score != 100 {
		t.Errorf("clean translation heuristic = %d, want 100", score.Score)
	}
}

func TestEvaluateMalformedAIResponseFallsBack(t *testing.T) {
	texts := &fakeTexts{byID: map[string]TranslationText{
		"tr_1": {ID: "tr_1", Language: "de", SourceText: "Hello!", TargetText: "Hallo!"},
	}}
	scores := &fakeScores{}
	gen := &fakeGenerator{text: "I think this translation is pretty good."}
	engine := newTestEngine(texts, scores, gen)

	score, err := engine.Evaluate(context.Background(), "tr_1", Config{AIEnabled: true, Model: "quality-rater-1"})
	if err != nil {
		t.Fatalf("Evaluate must degrade, not fail: %v", err)
	}
	if score.EvaluationType != EvaluationHeuristic {
		t.Errorf("EvaluationType = %q, want heuristic", score.EvaluationType)
	}
}

// P3: passed is derived from the stored score, anchored at 80.
func TestPassedThreshold(t *testing.T) {
	for _, tc := range []struct {
		score int
		want  bool
	}{{0, false}, {79, false}, {80, true}, {100, true}} {
		if got := (Score{Score: tc.score}).Passed(); got != tc.want {
			t.Errorf("Passed() with score %d = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestContentHashDistinguishesInputs(t *testing.T) {
	a := ContentHash("Hello", "Hallo", "de")
	if a != ContentHash("Hello", "Hallo", "de") {
		t.Error("hash must be deterministic")
	}
	if a == ContentHash("Hello", "Hallo", "fr") {
		t.Error("language must be part of the hash")
	}
	if a == ContentHash("Hello", "Servus", "de") {
		t.Error("target must be part of the hash")
	}
	// Concatenation ambiguity must not collide.
	if ContentHash("ab", "c", "de") == ContentHash("a", "bc", "de") {
		t.Error("field boundaries must be hashed")
	}
}

func TestNeedsAIEvaluation(t *testing.T) {
	cfg := Config{AIEnabled: true, Model: "m"}
	if !(Score{EvaluationType: EvaluationHeuristic}).NeedsAIEvaluation(cfg) {
		t.Error("heuristic score under AI config needs upgrade")
	}
	if (Score{EvaluationType: EvaluationAI}).NeedsAIEvaluation(cfg) {
		t.Error("ai score never needs upgrade")
	}
	if (Score{EvaluationType: EvaluationHeuristic}).NeedsAIEvaluation(Config{}) {
		t.Error("nothing needs upgrade when AI is disabled")
	}
}

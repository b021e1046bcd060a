package quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// EvaluationError surfaces a scoring failure that could not be degraded to a
// heuristic result.
type EvaluationError struct {
	Stage string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed (%s): %v", e.Stage, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

type Engine struct {
	texts    TextStore
	scores   ScoreStore
	generate TextGenerator
	now      func() time.Time
}

// NewEngine wires the evaluation engine. generator may be nil, in which case
// every evaluation takes the heuristic path regardless of project config.
func NewEngine(texts TextStore, scores ScoreStore, generator TextGenerator) *Engine {
	return &Engine{texts: texts, scores: scores, generate: generator, now: time.Now}
}

// Evaluate scores one translation under the project's quality config. A
// stored score with a matching content hash is returned as-is with
// Cached=true: no recomputation, no model call. Otherwise the score is
// recomputed and upserted; the unique constraint on translation_id makes
// concurrent evaluation race-safe (last writer wins, never a duplicate row).
func (e *Engine) Evaluate(ctx context.Context, translationID string, cfg Config) (Score, error) {
	text, err := e.texts.GetTranslationText(ctx, translationID)
	if err != nil {
		return Score{}, err
	}
	hash := ContentHash(text.SourceText, text.TargetText, text.Language)

	stored, err := e.scores.GetScore(ctx, translationID)
	if err != nil {
		return Score{}, fmt.Errorf("load cached score: %w", err)
	}
	if stored != nil && stored.ContentHash == hash {
		cached := *stored
		cached.Cached = true
		return cached, nil
	}

	var score Score
	if cfg.AIEnabled && cfg.Model != "" && e.generate != nil {
		score, err = e.evaluateAI(ctx, text, cfg)
		if err != nil {
			log.Printf("quality: ai evaluation for %s failed, falling back to heuristic: %v", translationID, err)
			score = e.evaluateHeuristic(text, cfg)
		}
	} else {
		score = e.evaluateHeuristic(text, cfg)
	}

	score.TranslationID = translationID
	score.ContentHash = hash
	score.EvaluatedAt = e.now()
	if score.Issues == nil {
		score.Issues = []Issue{}
	}
	if err := e.scores.UpsertScore(ctx, score); err != nil {
		return Score{}, fmt.Errorf("persist score: %w", err)
	}
	return score, nil
}

func (e *Engine) evaluateHeuristic(text TranslationText, cfg Config) Score {
	value, issues := scoreHeuristic(text.SourceText, text.TargetText, cfg.Terms)
	return Score{
		Score:          clampScore(value),
		Issues:         issues,
		EvaluationType: EvaluationHeuristic,
	}
}

// aiResponse is the JSON shape the model is instructed to return.
type aiResponse struct {
	Accuracy    *int    `json:"accuracy"`
	Fluency     *int    `json:"fluency"`
	Terminology *int    `json:"terminology"`
	Format      *int    `json:"format"`
	Issues      []Issue `json:"issues"`
}

func (e *Engine) evaluateAI(ctx context.Context, text TranslationText, cfg Config) (Score, error) {
	prompt := buildEvaluationPrompt(text, cfg)
	gen, err := e.generate.GenerateText(ctx, cfg.Model, prompt)
	if err != nil {
		return Score{}, &EvaluationError{Stage: "generate", Err: err}
	}

	var resp aiResponse
	if err := json.Unmarshal([]byte(stripCodeFence(gen.Text)), &resp); err != nil {
		return Score{}, &EvaluationError{Stage: "parse", Err: err}
	}

	subs := make([]int, 0, 4)
	clampSub := func(p *int) *int {
		if p == nil {
			return nil
		}
		v := clampScore(*p)
		subs = append(subs, v)
		return &v
	}
	score := Score{
		Accuracy:       clampSub(resp.Accuracy),
		Fluency:        clampSub(resp.Fluency),
		Terminology:    clampSub(resp.Terminology),
		Format:         clampSub(resp.Format),
		Issues:         sanitizeIssues(resp.Issues),
		EvaluationType: EvaluationAI,
		Provider:       gen.Provider,
		Model:          gen.Model,
		InputTokens:    gen.InputTokens,
		OutputTokens:   gen.OutputTokens,
	}
	if len(subs) == 0 {
		return Score{}, &EvaluationError{Stage: "parse", Err: errors.New("response carries no sub-scores")}
	}

	// Overall score is the rounded unweighted mean of the sub-scores the
	// model returned. Kept stable for cache determinism.
	total := 0
	for _, v := range subs {
		total += v
	}
	score.Score = clampScore((total + len(subs)/2) / len(subs))
	return score, nil
}

func buildEvaluationPrompt(text TranslationText, cfg Config) string {
	var b strings.Builder
	b.WriteString("You are a translation quality rater. Rate the translation below.\n")
	b.WriteString("Respond with a single JSON object and nothing else, using the shape\n")
	b.WriteString(`{"accuracy":0-100,"fluency":0-100,"terminology":0-100,"issues":[{"type":"...","severity":"error|warning|info","message":"..."}]}`)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Target language: %s\n", text.Language)
	if len(cfg.Terms) > 0 {
		fmt.Fprintf(&b, "Glossary terms that must carry over verbatim: %s\n", strings.Join(cfg.Terms, ", "))
	}
	fmt.Fprintf(&b, "Source text:\n%s\n\nTranslation:\n%s\n", text.SourceText, text.TargetText)
	return b.String()
}

func sanitizeIssues(issues []Issue) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Type == "" {
			continue
		}
		switch issue.Severity {
		case SeverityError, SeverityWarning, SeverityInfo:
		default:
			issue.Severity = SeverityWarning
		}
		out = append(out, issue)
	}
	return out
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

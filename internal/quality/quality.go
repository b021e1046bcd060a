// Package quality computes and caches translation quality scores. Scores are
// produced either by deterministic heuristics or by an external text
// generation model, persisted one-per-translation, and reused until the
// translation's content hash changes.
package quality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type Issue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type EvaluationType string

const (
	EvaluationHeuristic EvaluationType = "heuristic"
	EvaluationAI        EvaluationType = "ai"
)

// PassThreshold is the score at which a translation counts as passing. The
// summary distribution buckets are anchored to the same boundary.
const PassThreshold = 80

// Score is the quality assessment of one translation. Exactly one row exists
// per translation; re-evaluation overwrites it.
type Score struct {
	TranslationID  string         `json:"translationId"`
	Score          int            `json:"score"`
	Accuracy       *int           `json:"accuracy,omitempty"`
	Fluency        *int           `json:"fluency,omitempty"`
	Terminology    *int           `json:"terminology,omitempty"`
	Format         *int           `json:"format,omitempty"`
	Issues         []Issue        `json:"issues"`
	EvaluationType EvaluationType `json:"evaluationType"`
	Provider       string         `json:"provider,omitempty"`
	Model          string         `json:"model,omitempty"`
	InputTokens    int            `json:"inputTokens,omitempty"`
	OutputTokens   int            `json:"outputTokens,omitempty"`
	ContentHash    string         `json:"contentHash"`
	Cached         bool           `json:"cached"`
	EvaluatedAt    time.Time      `json:"evaluatedAt"`
}

// Passed is always derived from Score, never stored independently.
func (s Score) Passed() bool {
	return s.Score >= PassThreshold
}

// NeedsAIEvaluation reports whether the stored score should be upgraded: AI
// scoring is enabled but the cached result came from the heuristic path.
func (s Score) NeedsAIEvaluation(cfg Config) bool {
	return cfg.AIEnabled && s.EvaluationType == EvaluationHeuristic
}

// Config is a project's quality evaluation configuration.
type Config struct {
	AIEnabled bool     `json:"aiEvaluationEnabled"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	Terms     []string `json:"terms,omitempty"`
}

// TranslationText is the scoring input: the default-language source value and
// the translated value under evaluation.
type TranslationText struct {
	ID         string
	ProjectID  string
	Language   string
	SourceText string
	TargetText string
}

type TextStore interface {
	GetTranslationText(ctx context.Context, translationID string) (TranslationText, error)
}

type ScoreStore interface {
	GetScore(ctx context.Context, translationID string) (*Score, error)
	UpsertScore(ctx context.Context, score Score) error
}

// Generation is an opaque model response plus usage accounting.
type Generation struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TextGenerator abstracts the AI provider; nil disables the AI path.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (Generation, error)
}

// ContentHash fingerprints the scored text. A stored score is valid exactly
// as long as the hash of the live content matches.
func ContentHash(sourceText, targetText, language string) string {
	h := sha256.New()
	h.Write([]byte(sourceText))
	h.Write([]byte{0})
	h.Write([]byte(targetText))
	h.Write([]byte{0})
	h.Write([]byte(language))
	return hex.EncodeToString(h.Sum(nil))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

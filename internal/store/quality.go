package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lingx/api/internal/quality"
)

// GetTranslationText joins the translation under evaluation with the
// default-language value of the same key, which serves as the source text.
func (s *PostgresStore) GetTranslationText(ctx context.Context, translationID string) (quality.TranslationText, error) {
	const query = `
		SELECT t.id, p.id, t.language, COALESCE(src.value, ''), t.value
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		JOIN branches b ON b.id = k.branch_id
		JOIN spaces sp ON sp.id = b.space_id
		JOIN projects p ON p.id = sp.project_id
		LEFT JOIN translations src ON src.key_id = t.key_id AND src.language = p.default_language
		WHERE t.id = $1
	`
	var text quality.TranslationText
	err := s.db.QueryRowContext(ctx, query, translationID).
		Scan(&text.ID, &text.ProjectID, &text.Language, &text.SourceText, &text.TargetText)
	if err != nil {
		return quality.TranslationText{}, err
	}
	return text, nil
}

func (s *PostgresStore) GetScore(ctx context.Context, translationID string) (*quality.Score, error) {
	const query = `
		SELECT translation_id, score, accuracy, fluency, terminology, format,
			COALESCE(issues::text, '[]'), evaluation_type, COALESCE(provider, ''), COALESCE(model, ''),
			input_tokens, output_tokens, content_hash, evaluated_at
		FROM quality_scores WHERE translation_id = $1
	`
	var sc quality.Score
	var issuesJSON string
	err := s.db.QueryRowContext(ctx, query, translationID).Scan(
		&sc.TranslationID, &sc.Score, &sc.Accuracy, &sc.Fluency, &sc.Terminology, &sc.Format,
		&issuesJSON, &sc.EvaluationType, &sc.Provider, &sc.Model,
		&sc.InputTokens, &sc.OutputTokens, &sc.ContentHash, &sc.EvaluatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read score: %w", err)
	}
	if err := json.Unmarshal([]byte(issuesJSON), &sc.Issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	if sc.Issues == nil {
		sc.Issues = []quality.Issue{}
	}
	return &sc, nil
}

func (s *PostgresStore) UpsertScore(ctx context.Context, sc quality.Score) error {
	issuesJSON, err := json.Marshal(sc.Issues)
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quality_scores
			(translation_id, score, accuracy, fluency, terminology, format, issues,
			 evaluation_type, provider, model, input_tokens, output_tokens, content_hash, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, $14)
		ON CONFLICT (translation_id) DO UPDATE SET
			score=EXCLUDED.score, accuracy=EXCLUDED.accuracy, fluency=EXCLUDED.fluency,
			terminology=EXCLUDED.terminology, format=EXCLUDED.format, issues=EXCLUDED.issues,
			evaluation_type=EXCLUDED.evaluation_type, provider=EXCLUDED.provider, model=EXCLUDED.model,
			input_tokens=EXCLUDED.input_tokens, output_tokens=EXCLUDED.output_tokens,
			content_hash=EXCLUDED.content_hash, evaluated_at=EXCLUDED.evaluated_at
	`, sc.TranslationID, sc.Score, sc.Accuracy, sc.Fluency, sc.Terminology, sc.Format, string(issuesJSON),
		string(sc.EvaluationType), sc.Provider, sc.Model, sc.InputTokens, sc.OutputTokens, sc.ContentHash, sc.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}

// scoredTranslation pairs a live translation with its stored score, if any.
type scoredTranslation struct {
	TranslationID string
	Language      string
	SourceText    string
	TargetText    string
	Score         *int
	ContentHash   string
	Evaluation    string
}

func (s *PostgresStore) listBranchScored(ctx context.Context, branchID string) ([]scoredTranslation, error) {
	const query = `
		SELECT t.id, t.language, COALESCE(src.value, ''), t.value,
			qs.score, COALESCE(qs.content_hash, ''), COALESCE(qs.evaluation_type, '')
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		JOIN branches b ON b.id = k.branch_id
		JOIN spaces sp ON sp.id = b.space_id
		JOIN projects p ON p.id = sp.project_id
		LEFT JOIN translations src ON src.key_id = t.key_id AND src.language = p.default_language
		LEFT JOIN quality_scores qs ON qs.translation_id = t.id
		WHERE k.branch_id = $1 AND t.language <> p.default_language
	`
	rows, err := s.db.QueryContext(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("list scored translations: %w", err)
	}
	defer rows.Close()

	items := make([]scoredTranslation, 0)
	for rows.Next() {
		var st scoredTranslation
		if err := rows.Scan(&st.TranslationID, &st.Language, &st.SourceText, &st.TargetText,
			&st.Score, &st.ContentHash, &st.Evaluation); err != nil {
			return nil, fmt.Errorf("scan scored translation: %w", err)
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scored translations: %w", err)
	}
	return items, nil
}

// BranchQualitySummary aggregates stored scores across a branch. A score only
// counts when its content hash still matches the live text; stale scores show
// up as unevaluated instead.
func (s *PostgresStore) BranchQualitySummary(ctx context.Context, branchID string) (BranchSummary, error) {
	items, err := s.listBranchScored(ctx, branchID)
	if err != nil {
		return BranchSummary{}, err
	}

	summary := BranchSummary{
		BranchID:   branchID,
		ByLanguage: map[string]LanguageStats{},
	}
	total := 0
	for _, item := range items {
		summary.TotalTranslations++
		stats := summary.ByLanguage[item.Language]
		stats.Total++

		valid := item.Score != nil &&
			item.ContentHash == quality.ContentHash(item.SourceText, item.TargetText, item.Language)
		if !valid {
			summary.Unevaluated++
			summary.ByLanguage[item.Language] = stats
			continue
		}

		score := *item.Score
		summary.Evaluated++
		stats.Evaluated++
		stats.ScoreSum += score
		total += score
		switch {
		case score >= 90:
			summary.Distribution.Excellent++
		case score >= quality.PassThreshold:
			summary.Distribution.Good++
		default:
			summary.Distribution.Poor++
		}
		if score >= quality.PassThreshold {
			summary.Passing++
			stats.Passing++
		} else {
			summary.Failing++
		}
		summary.ByLanguage[item.Language] = stats
	}

	if summary.Evaluated > 0 {
		summary.AverageScore = float64(total) / float64(summary.Evaluated)
	}
	return summary, nil
}

// ListBranchEvaluationTargets returns translations on a branch that need
// (re-)evaluation: never scored, scored against different content, or scored
// heuristically while the project has AI evaluation enabled.
func (s *PostgresStore) ListBranchEvaluationTargets(ctx context.Context, branchID string, cfg quality.Config) (total, cached int, targets []string, err error) {
	items, err := s.listBranchScored(ctx, branchID)
	if err != nil {
		return 0, 0, nil, err
	}
	for _, item := range items {
		total++
		fresh := item.Score != nil &&
			item.ContentHash == quality.ContentHash(item.SourceText, item.TargetText, item.Language)
		if fresh && !(cfg.AIEnabled && item.Evaluation == string(quality.EvaluationHeuristic)) {
			cached++
			continue
		}
		targets = append(targets, item.TranslationID)
	}
	return total, cached, targets, nil
}

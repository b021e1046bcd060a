package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"lingx/api/internal/cqrs"
	"lingx/api/internal/quality"
)

func (s *Service) EvaluateTranslation(ctx context.Context, session Session, translationID string) (map[string]any, error) {
	projectID, err := s.store.GetTranslationProjectID(ctx, translationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("translation")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, evaluateCommand{
		projectID: projectID, translationID: translationID,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) BatchEvaluate(ctx context.Context, session Session, branchID string) (map[string]any, error) {
	projectID, err := s.store.GetBranchProjectID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("branch")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, batchEvaluateCommand{
		projectID: projectID, branchID: branchID,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) QualitySummary(ctx context.Context, session Session, branchID string) (map[string]any, error) {
	projectID, err := s.store.GetBranchProjectID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("branch")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, qualitySummaryCommand{
		projectID: projectID, branchID: branchID,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) GetQualityConfig(ctx context.Context, session Session, projectID string) (quality.Config, error) {
	result, err := s.executeCommand(ctx, session, getQualityConfigCommand{projectID: projectID})
	if err != nil {
		return quality.Config{}, err
	}
	return result.(quality.Config), nil
}

func (s *Service) UpdateQualityConfig(ctx context.Context, session Session, projectID string, configJSON []byte) (quality.Config, error) {
	result, err := s.executeCommand(ctx, session, updateQualityConfigCommand{
		projectID: projectID, configJSON: configJSON,
	})
	if err != nil {
		return quality.Config{}, err
	}
	return result.(quality.Config), nil
}

// ValidateICU checks message syntax and lists its arguments. It is scoped to
// no project and available to any signed-in user.
func (s *Service) ValidateICU(message string) map[string]any {
	if err := quality.ValidateICU(message); err != nil {
		return map[string]any{
			"valid": false,
			"error": err.Error(),
		}
	}
	args, _ := quality.ParseICUArguments(message)
	if args == nil {
		args = []string{}
	}
	return map[string]any{
		"valid":     true,
		"arguments": args,
	}
}

func (s *Service) loadQualityConfig(ctx context.Context, projectID string) (quality.Config, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quality.Config{}, errNotFound("project")
		}
		return quality.Config{}, err
	}
	var cfg quality.Config
	if strings.TrimSpace(project.QualityConfig) != "" {
		if err := json.Unmarshal([]byte(project.QualityConfig), &cfg); err != nil {
			return quality.Config{}, err
		}
	}
	return cfg, nil
}

func (s *Service) doEvaluate(ctx context.Context, cmd evaluateCommand) (map[string]any, error) {
	cfg, err := s.loadQualityConfig(ctx, cmd.projectID)
	if err != nil {
		return nil, err
	}
	score, err := s.engine.Evaluate(ctx, cmd.translationID, cfg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("translation")
		}
		return nil, err
	}
	return map[string]any{
		"score":  score,
		"passed": score.Passed(),
	}, nil
}

func (s *Service) doBatchEvaluate(ctx context.Context, actor cqrs.Actor, cmd batchEvaluateCommand) (map[string]any, error) {
	cfg, err := s.loadQualityConfig(ctx, cmd.projectID)
	if err != nil {
		return nil, err
	}

	total, cached, targets, err := s.store.ListBranchEvaluationTargets(ctx, cmd.branchID, cfg)
	if err != nil {
		return nil, err
	}

	queued := 0
	for _, translationID := range targets {
		if s.runner.Enqueue(translationID, cfg) {
			queued++
		}
	}
	if queued < len(targets) {
		// Queue full; the caller sees the shortfall and can retry later.
		s.recordActivity(ctx, cmd.projectID, cmd.branchID, "quality.batch.truncated", actor.DisplayName, map[string]any{
			"requested": len(targets),
			"queued":    queued,
		})
	}

	return map[string]any{
		"total":  total,
		"cached": cached,
		"queued": queued,
	}, nil
}

func (s *Service) doQualitySummary(ctx context.Context, cmd qualitySummaryCommand) (map[string]any, error) {
	summary, err := s.store.BranchQualitySummary(ctx, cmd.branchID)
	if err != nil {
		return nil, err
	}

	byLanguage := make(map[string]any, len(summary.ByLanguage))
	for language, stats := range summary.ByLanguage {
		byLanguage[language] = map[string]any{
			"count":   stats.Evaluated,
			"average": stats.Average(),
			"total":   stats.Total,
			"passing": stats.Passing,
		}
	}

	return map[string]any{
		"branchId":          summary.BranchID,
		"totalTranslations": summary.TotalTranslations,
		"totalScored":       summary.Evaluated,
		"unevaluated":       summary.Unevaluated,
		"passing":           summary.Passing,
		"failing":           summary.Failing,
		"averageScore":      summary.AverageScore,
		"distribution":      summary.Distribution,
		"byLanguage":        byLanguage,
		"passThreshold":     quality.PassThreshold,
	}, nil
}

func (s *Service) doGetQualityConfig(ctx context.Context, cmd getQualityConfigCommand) (quality.Config, error) {
	return s.loadQualityConfig(ctx, cmd.projectID)
}

func (s *Service) doUpdateQualityConfig(ctx context.Context, actor cqrs.Actor, cmd updateQualityConfigCommand) (quality.Config, error) {
	var cfg quality.Config
	if err := json.Unmarshal(cmd.configJSON, &cfg); err != nil {
		return quality.Config{}, errValidation("invalid quality config payload")
	}
	if cfg.AIEnabled && strings.TrimSpace(cfg.Model) == "" {
		return quality.Config{}, errValidation("model is required when AI evaluation is enabled")
	}

	encoded, err := json.Marshal(cfg)
	if err != nil {
		return quality.Config{}, err
	}
	if err := s.store.UpdateQualityConfig(ctx, cmd.projectID, string(encoded)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quality.Config{}, errNotFound("project")
		}
		return quality.Config{}, err
	}

	s.recordActivity(ctx, cmd.projectID, "", "quality.config.updated", actor.DisplayName, map[string]any{
		"aiEvaluationEnabled": cfg.AIEnabled,
		"model":               cfg.Model,
	})
	return cfg, nil
}

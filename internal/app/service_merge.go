package app

import (
	"context"
	"database/sql"
	"errors"

	"lingx/api/internal/branch"
	"lingx/api/internal/cqrs"
	"lingx/api/internal/store"
)

// MergeInput is the decoded merge request body.
type MergeInput struct {
	TargetBranchID string              `json:"targetBranchId"`
	Resolutions    []branch.Resolution `json:"resolutions"`
	TargetVersion  int64               `json:"targetVersion"`
	DeleteMissing  bool                `json:"deleteMissing"`
	CustomFallback string              `json:"customFallback"`
}

func (s *Service) DiffBranches(ctx context.Context, session Session, sourceBranchID, targetBranchID string) (map[string]any, error) {
	projectID, err := s.store.GetBranchProjectID(ctx, sourceBranchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("branch")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, diffCommand{
		projectID:      projectID,
		sourceBranchID: sourceBranchID,
		targetBranchID: targetBranchID,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) MergeBranches(ctx context.Context, session Session, sourceBranchID string, input MergeInput) (map[string]any, error) {
	projectID, err := s.store.GetBranchProjectID(ctx, sourceBranchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("branch")
		}
		return nil, err
	}

	fallback := branch.Fallback(input.CustomFallback)
	switch fallback {
	case "", branch.FallbackTarget, branch.FallbackSource, branch.FallbackStrict:
	default:
		return nil, errValidation("customFallback must be target, source or strict")
	}

	result, err := s.executeCommand(ctx, session, mergeCommand{
		projectID:      projectID,
		sourceBranchID: sourceBranchID,
		targetBranchID: input.TargetBranchID,
		resolutions:    input.Resolutions,
		targetVersion:  input.TargetVersion,
		deleteMissing:  input.DeleteMissing,
		customFallback: fallback,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

// lineage validates that two branches can be diffed or merged: same space,
// and one of them forked from the other. It returns the forked branch, whose
// fork-point snapshot serves as the common ancestor.
func (s *Service) lineage(ctx context.Context, sourceBranchID, targetBranchID string) (source, target, forked store.Branch, err error) {
	source, err = s.store.GetBranch(ctx, sourceBranchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errNotFound("source branch")
		}
		return
	}
	target, err = s.store.GetBranch(ctx, targetBranchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errNotFound("target branch")
		}
		return
	}
	if source.ID == target.ID {
		err = errInvalidMerge("source and target are the same branch")
		return
	}
	if source.SpaceID != target.SpaceID {
		err = errInvalidMerge("branches belong to different spaces")
		return
	}
	switch {
	case source.CreatedFrom == target.ID:
		forked = source
	case target.CreatedFrom == source.ID:
		forked = target
	default:
		err = errInvalidMerge("branches are not related; one must be created from the other")
	}
	return
}

func (s *Service) computeDiff(ctx context.Context, sourceBranchID, targetBranchID string) (branch.Diff, store.Branch, store.Branch, store.Branch, error) {
	source, target, forked, err := s.lineage(ctx, sourceBranchID, targetBranchID)
	if err != nil {
		return branch.Diff{}, store.Branch{}, store.Branch{}, store.Branch{}, err
	}

	base, err := s.store.LoadBranchBaseSnapshot(ctx, forked.ID)
	if err != nil {
		return branch.Diff{}, store.Branch{}, store.Branch{}, store.Branch{}, err
	}
	sourceSnap, err := s.store.LoadBranchSnapshot(ctx, source.ID)
	if err != nil {
		return branch.Diff{}, store.Branch{}, store.Branch{}, store.Branch{}, err
	}
	targetSnap, err := s.store.LoadBranchSnapshot(ctx, target.ID)
	if err != nil {
		return branch.Diff{}, store.Branch{}, store.Branch{}, store.Branch{}, err
	}

	return branch.Compute(base, sourceSnap, targetSnap), source, target, forked, nil
}

func (s *Service) doDiff(ctx context.Context, cmd diffCommand) (map[string]any, error) {
	diff, source, target, _, err := s.computeDiff(ctx, cmd.sourceBranchID, cmd.targetBranchID)
	if err != nil {
		return nil, err
	}
	return diffPayload(diff, source, target), nil
}

func (s *Service) doMerge(ctx context.Context, actor cqrs.Actor, cmd mergeCommand) (map[string]any, error) {
	// The diff is recomputed here rather than trusted from the preview call;
	// the version check inside ApplyMerge closes the remaining window.
	diff, source, target, forked, err := s.computeDiff(ctx, cmd.sourceBranchID, cmd.targetBranchID)
	if err != nil {
		return nil, err
	}

	expectedVersion := target.Version
	if cmd.targetVersion != 0 && cmd.targetVersion != target.Version {
		return nil, errMergeStale()
	}

	if diff.Empty() {
		return map[string]any{
			"merged":            true,
			"upToDate":          true,
			"conflictsResolved": 0,
			"upserts":           0,
			"deletes":           0,
		}, nil
	}

	plan, err := branch.BuildPlan(diff, cmd.resolutions, branch.PlanOptions{
		DeleteMissing:  cmd.deleteMissing,
		CustomFallback: cmd.customFallback,
	})
	if err != nil {
		var unresolved *branch.UnresolvedError
		if errors.As(err, &unresolved) {
			return nil, errUnresolvedConflicts(unresolved.Keys)
		}
		var bad *branch.ResolutionError
		if errors.As(err, &bad) {
			return nil, errInvalidMerge(bad.Reason)
		}
		return nil, err
	}

	if err := s.store.ApplyMerge(ctx, target.ID, expectedVersion, plan); err != nil {
		if errors.Is(err, store.ErrStaleBranch) {
			return nil, errMergeStale()
		}
		return nil, err
	}

	// Reset the forked branch's ancestor to the merged state so the next
	// diff reports only new work.
	parentID := source.ID
	if forked.ID == source.ID {
		parentID = target.ID
	}
	if err := s.store.RefreshBaseSnapshot(ctx, forked.ID, parentID); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, cmd.projectID, target.ID, "branch.merged", actor.DisplayName, map[string]any{
		"sourceBranch":      source.Name,
		"targetBranch":      target.Name,
		"sourceBranchId":    source.ID,
		"targetBranchId":    target.ID,
		"conflictsResolved": plan.ConflictsResolved,
		"upserts":           len(plan.Upserts),
		"deletes":           len(plan.Deletes),
	})

	return map[string]any{
		"merged":            true,
		"upToDate":          false,
		"conflictsResolved": plan.ConflictsResolved,
		"upserts":           len(plan.Upserts),
		"deletes":           len(plan.Deletes),
	}, nil
}

func diffPayload(diff branch.Diff, source, target store.Branch) map[string]any {
	return map[string]any{
		"sourceBranchId": source.ID,
		"targetBranchId": target.ID,
		"sourceVersion":  source.Version,
		"targetVersion":  target.Version,
		"added":          diff.Added,
		"deleted":        diff.Deleted,
		"modified":       diff.Modified,
		"conflicts":      diff.Conflicts,
		"hasConflicts":   len(diff.Conflicts) > 0,
		"empty":          diff.Empty(),
	}
}

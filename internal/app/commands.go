package app

import (
	"context"

	"lingx/api/internal/branch"
	"lingx/api/internal/cqrs"
	"lingx/api/internal/rbac"
	"lingx/api/internal/search"
)

// Command names double as the activity vocabulary; keep them stable.
const (
	cmdProjectGet       = "project.get"
	cmdMemberAdd        = "project.member.add"
	cmdSpaceCreate      = "space.create"
	cmdSpaceList        = "space.list"
	cmdBranchCreate     = "branch.create"
	cmdBranchList       = "branch.list"
	cmdKeyList          = "key.list"
	cmdKeyUpsert        = "key.upsert"
	cmdTranslationState = "translation.status"
	cmdBranchDiff       = "branch.diff"
	cmdBranchMerge      = "branch.merge"
	cmdQualityEvaluate  = "quality.evaluate"
	cmdQualityBatch     = "quality.batch"
	cmdQualitySummary   = "quality.summary"
	cmdQualityConfigGet = "quality.config.get"
	cmdQualityConfigSet = "quality.config.update"
	cmdActivityList     = "activity.list"
	cmdSearch           = "search.run"
	cmdBranchExport     = "branch.export"
	cmdAPIKeyCreate     = "apikey.create"
	cmdAPIKeyList       = "apikey.list"
	cmdAPIKeyRevoke     = "apikey.revoke"
)

type getProjectCommand struct{ projectID string }

func (c getProjectCommand) Name() string  { return cmdProjectGet }
func (c getProjectCommand) Scope() string { return c.projectID }

type addMemberCommand struct {
	projectID string
	userName  string
	role      string
}

func (c addMemberCommand) Name() string  { return cmdMemberAdd }
func (c addMemberCommand) Scope() string { return c.projectID }

type createSpaceCommand struct {
	projectID   string
	name        string
	description string
}

func (c createSpaceCommand) Name() string  { return cmdSpaceCreate }
func (c createSpaceCommand) Scope() string { return c.projectID }

type listSpacesCommand struct{ projectID string }

func (c listSpacesCommand) Name() string  { return cmdSpaceList }
func (c listSpacesCommand) Scope() string { return c.projectID }

type createBranchCommand struct {
	projectID    string
	spaceID      string
	name         string
	fromBranchID string
}

func (c createBranchCommand) Name() string  { return cmdBranchCreate }
func (c createBranchCommand) Scope() string { return c.projectID }

type listBranchesCommand struct {
	projectID string
	spaceID   string
}

func (c listBranchesCommand) Name() string  { return cmdBranchList }
func (c listBranchesCommand) Scope() string { return c.projectID }

type listKeysCommand struct {
	projectID string
	branchID  string
}

func (c listKeysCommand) Name() string  { return cmdKeyList }
func (c listKeysCommand) Scope() string { return c.projectID }

type upsertKeyCommand struct {
	projectID    string
	branchID     string
	name         string
	translations map[string]string
}

func (c upsertKeyCommand) Name() string  { return cmdKeyUpsert }
func (c upsertKeyCommand) Scope() string { return c.projectID }

type setTranslationStatusCommand struct {
	projectID     string
	translationID string
	status        string
}

func (c setTranslationStatusCommand) Name() string  { return cmdTranslationState }
func (c setTranslationStatusCommand) Scope() string { return c.projectID }

type diffCommand struct {
	projectID      string
	sourceBranchID string
	targetBranchID string
}

func (c diffCommand) Name() string  { return cmdBranchDiff }
func (c diffCommand) Scope() string { return c.projectID }

type mergeCommand struct {
	projectID      string
	sourceBranchID string
	targetBranchID string
	resolutions    []branch.Resolution
	targetVersion  int64
	deleteMissing  bool
	customFallback branch.Fallback
}

func (c mergeCommand) Name() string  { return cmdBranchMerge }
func (c mergeCommand) Scope() string { return c.projectID }

type evaluateCommand struct {
	projectID     string
	translationID string
}

func (c evaluateCommand) Name() string  { return cmdQualityEvaluate }
func (c evaluateCommand) Scope() string { return c.projectID }

type batchEvaluateCommand struct {
	projectID string
	branchID  string
}

func (c batchEvaluateCommand) Name() string  { return cmdQualityBatch }
func (c batchEvaluateCommand) Scope() string { return c.projectID }

type qualitySummaryCommand struct {
	projectID string
	branchID  string
}

func (c qualitySummaryCommand) Name() string  { return cmdQualitySummary }
func (c qualitySummaryCommand) Scope() string { return c.projectID }

type getQualityConfigCommand struct{ projectID string }

func (c getQualityConfigCommand) Name() string  { return cmdQualityConfigGet }
func (c getQualityConfigCommand) Scope() string { return c.projectID }

type updateQualityConfigCommand struct {
	projectID  string
	configJSON []byte
}

func (c updateQualityConfigCommand) Name() string  { return cmdQualityConfigSet }
func (c updateQualityConfigCommand) Scope() string { return c.projectID }

type listActivityCommand struct {
	projectID string
	limit     int
}

func (c listActivityCommand) Name() string  { return cmdActivityList }
func (c listActivityCommand) Scope() string { return c.projectID }

type searchCommand struct{ query search.Query }

func (c searchCommand) Name() string  { return cmdSearch }
func (c searchCommand) Scope() string { return c.query.FilterProjectID }

type exportBranchCommand struct {
	projectID string
	branchID  string
	upload    bool
}

func (c exportBranchCommand) Name() string  { return cmdBranchExport }
func (c exportBranchCommand) Scope() string { return c.projectID }

type createAPIKeyCommand struct {
	projectID string
	name      string
}

func (c createAPIKeyCommand) Name() string  { return cmdAPIKeyCreate }
func (c createAPIKeyCommand) Scope() string { return c.projectID }

type listAPIKeysCommand struct{ projectID string }

func (c listAPIKeysCommand) Name() string  { return cmdAPIKeyList }
func (c listAPIKeysCommand) Scope() string { return c.projectID }

type revokeAPIKeyCommand struct {
	projectID string
	keyID     string
}

func (c revokeAPIKeyCommand) Name() string  { return cmdAPIKeyRevoke }
func (c revokeAPIKeyCommand) Scope() string { return c.projectID }

// registerCommands binds every command to its handler and its minimum
// required action. Authorization lives in the bus; handlers assume the actor
// is already cleared.
func (s *Service) registerCommands() {
	reg := func(name string, action rbac.Action, handler cqrs.HandlerFunc) {
		s.bus.Register(name, action, handler)
	}

	reg(cmdProjectGet, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doGetProject(ctx, actor, cmd.(getProjectCommand))
	})
	reg(cmdMemberAdd, rbac.ActionAdmin, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doAddMember(ctx, actor, cmd.(addMemberCommand))
	})
	reg(cmdSpaceCreate, rbac.ActionManage, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doCreateSpace(ctx, actor, cmd.(createSpaceCommand))
	})
	reg(cmdSpaceList, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doListSpaces(ctx, cmd.(listSpacesCommand))
	})
	reg(cmdBranchCreate, rbac.ActionTranslate, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doCreateBranch(ctx, actor, cmd.(createBranchCommand))
	})
	reg(cmdBranchList, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doListBranches(ctx, cmd.(listBranchesCommand))
	})
	reg(cmdKeyList, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doListKeys(ctx, cmd.(listKeysCommand))
	})
	reg(cmdKeyUpsert, rbac.ActionTranslate, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doUpsertKey(ctx, actor, cmd.(upsertKeyCommand))
	})
	reg(cmdTranslationState, rbac.ActionManage, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doSetTranslationStatus(ctx, actor, cmd.(setTranslationStatusCommand))
	})
	reg(cmdBranchDiff, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doDiff(ctx, cmd.(diffCommand))
	})
	reg(cmdBranchMerge, rbac.ActionMerge, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doMerge(ctx, actor, cmd.(mergeCommand))
	})
	reg(cmdQualityEvaluate, rbac.ActionEvaluate, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doEvaluate(ctx, cmd.(evaluateCommand))
	})
	reg(cmdQualityBatch, rbac.ActionEvaluate, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doBatchEvaluate(ctx, actor, cmd.(batchEvaluateCommand))
	})
	reg(cmdQualitySummary, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doQualitySummary(ctx, cmd.(qualitySummaryCommand))
	})
	reg(cmdQualityConfigGet, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doGetQualityConfig(ctx, cmd.(getQualityConfigCommand))
	})
	reg(cmdQualityConfigSet, rbac.ActionManage, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doUpdateQualityConfig(ctx, actor, cmd.(updateQualityConfigCommand))
	})
	reg(cmdActivityList, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doListActivity(ctx, cmd.(listActivityCommand))
	})
	reg(cmdSearch, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.search.Search(cmd.(searchCommand).query), nil
	})
	reg(cmdBranchExport, rbac.ActionRead, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doExportBranch(ctx, cmd.(exportBranchCommand))
	})
	reg(cmdAPIKeyCreate, rbac.ActionAdmin, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doCreateAPIKey(ctx, actor, cmd.(createAPIKeyCommand))
	})
	reg(cmdAPIKeyList, rbac.ActionManage, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return s.doListAPIKeys(ctx, cmd.(listAPIKeysCommand))
	})
	reg(cmdAPIKeyRevoke, rbac.ActionAdmin, func(ctx context.Context, actor cqrs.Actor, cmd cqrs.Command) (any, error) {
		return nil, s.doRevokeAPIKey(ctx, actor, cmd.(revokeAPIKeyCommand))
	})
}

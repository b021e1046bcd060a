package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"lingx/api/internal/cqrs"
	"lingx/api/internal/search"
	"lingx/api/internal/store"
	"lingx/api/internal/util"
)

func (s *Service) doGetProject(ctx context.Context, actor cqrs.Actor, cmd getProjectCommand) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, cmd.projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("project")
		}
		return nil, err
	}
	role, err := s.store.GetMemberRole(ctx, actor.UserID, cmd.projectID)
	if err != nil {
		return nil, err
	}
	return projectPayload(project, role), nil
}

func (s *Service) doAddMember(ctx context.Context, actor cqrs.Actor, cmd addMemberCommand) (map[string]any, error) {
	role := strings.ToUpper(strings.TrimSpace(cmd.role))
	if _, ok := allowedRoles[role]; !ok {
		return nil, errValidation("role must be OWNER, MANAGER or DEVELOPER")
	}
	userName := strings.TrimSpace(cmd.userName)
	if userName == "" {
		return nil, errValidation("userName is required")
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertMembership(ctx, cmd.projectID, user.ID, role); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, cmd.projectID, "", "member.added", actor.DisplayName, map[string]any{
		"userName": user.DisplayName,
		"role":     role,
	})
	return map[string]any{
		"userId":   user.ID,
		"userName": user.DisplayName,
		"role":     role,
	}, nil
}

func (s *Service) doCreateSpace(ctx context.Context, actor cqrs.Actor, cmd createSpaceCommand) (map[string]any, error) {
	name := strings.TrimSpace(cmd.name)
	if name == "" {
		return nil, errValidation("name is required")
	}

	space := store.Space{
		ID:          util.NewID("spc"),
		ProjectID:   cmd.projectID,
		Name:        name,
		Description: strings.TrimSpace(cmd.description),
	}
	if err := s.store.InsertSpace(ctx, space); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, errValidation("a space with this name already exists")
		}
		return nil, err
	}

	// Every space starts with a default branch.
	main := store.Branch{
		ID:        util.NewID("br"),
		SpaceID:   space.ID,
		Name:      "main",
		IsDefault: true,
	}
	if err := s.store.InsertBranch(ctx, main); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, cmd.projectID, main.ID, "space.created", actor.DisplayName, map[string]any{
		"name": name,
	})
	return map[string]any{
		"id":            space.ID,
		"projectId":     space.ProjectID,
		"name":          space.Name,
		"description":   space.Description,
		"defaultBranch": branchPayload(main),
	}, nil
}

func (s *Service) doListSpaces(ctx context.Context, cmd listSpacesCommand) ([]map[string]any, error) {
	spaces, err := s.store.ListSpaces(ctx, cmd.projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(spaces))
	for _, space := range spaces {
		items = append(items, map[string]any{
			"id":          space.ID,
			"projectId":   space.ProjectID,
			"name":        space.Name,
			"description": space.Description,
		})
	}
	return items, nil
}

func (s *Service) doCreateBranch(ctx context.Context, actor cqrs.Actor, cmd createBranchCommand) (map[string]any, error) {
	name := strings.TrimSpace(cmd.name)
	if name == "" {
		return nil, errValidation("name is required")
	}

	b := store.Branch{
		ID:      util.NewID("br"),
		SpaceID: cmd.spaceID,
		Name:    name,
	}

	if cmd.fromBranchID != "" {
		parent, err := s.store.GetBranch(ctx, cmd.fromBranchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errNotFound("parent branch")
			}
			return nil, err
		}
		if parent.SpaceID != cmd.spaceID {
			return nil, errValidation("parent branch belongs to a different space")
		}
		b.CreatedFrom = parent.ID
		if err := s.store.CreateBranchFrom(ctx, b, parent.ID); err != nil {
			if store.IsUniqueViolation(err) {
				return nil, errValidation("a branch with this name already exists")
			}
			return nil, err
		}
	} else {
		if err := s.store.InsertBranch(ctx, b); err != nil {
			if store.IsUniqueViolation(err) {
				return nil, errValidation("a branch with this name already exists")
			}
			return nil, err
		}
	}

	s.recordActivity(ctx, cmd.projectID, b.ID, "branch.created", actor.DisplayName, map[string]any{
		"name": name,
		"from": cmd.fromBranchID,
	})
	return branchPayload(b), nil
}

func (s *Service) doListBranches(ctx context.Context, cmd listBranchesCommand) ([]map[string]any, error) {
	branches, err := s.store.ListBranches(ctx, cmd.spaceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(branches))
	for _, b := range branches {
		items = append(items, branchPayload(b))
	}
	return items, nil
}

func (s *Service) doListKeys(ctx context.Context, cmd listKeysCommand) (map[string]any, error) {
	keys, translationsByKey, err := s.store.ListBranchKeys(ctx, cmd.branchID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		translations := make([]map[string]any, 0)
		for _, tr := range translationsByKey[key.ID] {
			translations = append(translations, map[string]any{
				"id":       tr.ID,
				"language": tr.Language,
				"value":    tr.Value,
				"status":   tr.Status,
			})
		}
		items = append(items, map[string]any{
			"id":           key.ID,
			"name":         key.Name,
			"translations": translations,
		})
	}
	return map[string]any{"branchId": cmd.branchID, "keys": items}, nil
}

func (s *Service) doUpsertKey(ctx context.Context, actor cqrs.Actor, cmd upsertKeyCommand) (map[string]any, error) {
	name := strings.TrimSpace(cmd.name)
	if name == "" {
		return nil, errValidation("name is required")
	}

	key, err := s.store.UpsertKey(ctx, cmd.branchID, name)
	if err != nil {
		return nil, err
	}

	translations := make([]map[string]any, 0, len(cmd.translations))
	for _, language := range sortedKeysOf(cmd.translations) {
		tr, err := s.store.UpsertTranslation(ctx, key.ID, language, cmd.translations[language])
		if err != nil {
			return nil, err
		}
		translations = append(translations, map[string]any{
			"id":       tr.ID,
			"language": tr.Language,
			"value":    tr.Value,
			"status":   tr.Status,
		})
		s.search.IndexTranslation(search.TranslationRecord{
			ID:        tr.ID,
			KeyName:   key.Name,
			Language:  tr.Language,
			Value:     tr.Value,
			Status:    tr.Status,
			BranchID:  cmd.branchID,
			ProjectID: cmd.projectID,
		})
	}
	s.search.IndexKey(search.KeyRecord{
		ID:        key.ID,
		Name:      key.Name,
		BranchID:  cmd.branchID,
		ProjectID: cmd.projectID,
	})

	return map[string]any{
		"id":           key.ID,
		"name":         key.Name,
		"translations": translations,
	}, nil
}

var allowedTranslationStatus = map[string]struct{}{
	"PENDING":  {},
	"APPROVED": {},
	"REJECTED": {},
}

func (s *Service) doSetTranslationStatus(ctx context.Context, actor cqrs.Actor, cmd setTranslationStatusCommand) (map[string]any, error) {
	status := strings.ToUpper(strings.TrimSpace(cmd.status))
	if _, ok := allowedTranslationStatus[status]; !ok {
		return nil, errValidation("status must be PENDING, APPROVED or REJECTED")
	}

	if err := s.store.SetTranslationStatus(ctx, cmd.translationID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("translation")
		}
		return nil, err
	}

	if status == "APPROVED" {
		s.recordActivity(ctx, cmd.projectID, "", "translation.approved", actor.DisplayName, map[string]any{
			"translationId": cmd.translationID,
		})
	}
	return map[string]any{"id": cmd.translationID, "status": status}, nil
}

func (s *Service) doListActivity(ctx context.Context, cmd listActivityCommand) ([]map[string]any, error) {
	events, err := s.store.ListActivity(ctx, cmd.projectID, cmd.limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		items = append(items, map[string]any{
			"id":        event.ID,
			"branchId":  event.BranchID,
			"type":      event.Type,
			"actor":     event.Actor,
			"metadata":  jsonRaw(event.Metadata),
			"createdAt": event.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

func (s *Service) doExportBranch(ctx context.Context, cmd exportBranchCommand) (map[string]any, error) {
	bundle, err := s.export.Build(ctx, cmd.branchID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"bundle": bundle}
	if cmd.upload {
		objectKey, err := s.export.Upload(ctx, bundle)
		if err != nil {
			return nil, err
		}
		payload["objectKey"] = objectKey
	}
	return payload, nil
}

func (s *Service) doCreateAPIKey(ctx context.Context, actor cqrs.Actor, cmd createAPIKeyCommand) (map[string]any, error) {
	name := strings.TrimSpace(cmd.name)
	if name == "" {
		return nil, errValidation("name is required")
	}

	key, token, err := s.apikeys.Issue(ctx, cmd.projectID, name, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, cmd.projectID, "", "apikey.created", actor.DisplayName, map[string]any{
		"name": name,
	})
	return map[string]any{
		"id":   key.ID,
		"name": key.Name,
		// The plaintext token is returned exactly once.
		"token": token,
	}, nil
}

func (s *Service) doListAPIKeys(ctx context.Context, cmd listAPIKeysCommand) ([]map[string]any, error) {
	keys, err := s.store.ListAPIKeys(ctx, cmd.projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		item := map[string]any{
			"id":        key.ID,
			"name":      key.Name,
			"createdBy": key.CreatedBy,
			"createdAt": key.CreatedAt.Format(time.RFC3339),
		}
		if key.LastUsedAt != nil {
			item["lastUsedAt"] = key.LastUsedAt.Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) doRevokeAPIKey(ctx context.Context, actor cqrs.Actor, cmd revokeAPIKeyCommand) error {
	if err := s.store.RevokeAPIKey(ctx, cmd.keyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("api key")
		}
		return err
	}
	s.recordActivity(ctx, cmd.projectID, "", "apikey.revoked", actor.DisplayName, map[string]any{
		"keyId": cmd.keyID,
	})
	return nil
}

func sortedKeysOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return sortedStrings(out)
}

func jsonRaw(s string) any {
	if s == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return map[string]any{}
	}
	return v
}

package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"lingx/api/internal/apikey"
	"lingx/api/internal/auth"
	"lingx/api/internal/branch"
	"lingx/api/internal/config"
	"lingx/api/internal/cqrs"
	"lingx/api/internal/export"
	"lingx/api/internal/quality"
	"lingx/api/internal/rbac"
	"lingx/api/internal/search"
	"lingx/api/internal/store"
	"lingx/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) actor() cqrs.Actor {
	return cqrs.Actor{UserID: s.UserID, DisplayName: s.UserName}
}

// dataStore is everything the service needs from Postgres.
type dataStore interface {
	EnsureUserByName(ctx context.Context, name string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)

	InsertProject(ctx context.Context, p store.Project, ownerID string) error
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]store.Project, error)
	UpdateQualityConfig(ctx context.Context, projectID, configJSON string) error
	GetMemberRole(ctx context.Context, userID, projectID string) (string, error)
	UpsertMembership(ctx context.Context, projectID, userID, role string) error

	InsertSpace(ctx context.Context, space store.Space) error
	GetSpace(ctx context.Context, spaceID string) (store.Space, error)
	ListSpaces(ctx context.Context, projectID string) ([]store.Space, error)

	GetBranch(ctx context.Context, branchID string) (store.Branch, error)
	ListBranches(ctx context.Context, spaceID string) ([]store.Branch, error)
	InsertBranch(ctx context.Context, b store.Branch) error
	CreateBranchFrom(ctx context.Context, b store.Branch, parentID string) error
	GetBranchProjectID(ctx context.Context, branchID string) (string, error)

	UpsertKey(ctx context.Context, branchID, name string) (store.TranslationKey, error)
	UpsertTranslation(ctx context.Context, keyID, language, value string) (store.Translation, error)
	SetTranslationStatus(ctx context.Context, translationID, status string) error
	GetTranslation(ctx context.Context, translationID string) (store.Translation, error)
	GetTranslationProjectID(ctx context.Context, translationID string) (string, error)
	ListBranchKeys(ctx context.Context, branchID string) ([]store.TranslationKey, map[string][]store.Translation, error)

	LoadBranchSnapshot(ctx context.Context, branchID string) (branch.Snapshot, error)
	LoadBranchBaseSnapshot(ctx context.Context, branchID string) (branch.Snapshot, error)
	ApplyMerge(ctx context.Context, targetBranchID string, expectedVersion int64, plan branch.Plan) error
	RefreshBaseSnapshot(ctx context.Context, branchID, fromBranchID string) error

	GetScore(ctx context.Context, translationID string) (*quality.Score, error)
	BranchQualitySummary(ctx context.Context, branchID string) (store.BranchSummary, error)
	ListBranchEvaluationTargets(ctx context.Context, branchID string, cfg quality.Config) (int, int, []string, error)

	InsertActivity(ctx context.Context, event store.ActivityEvent) error
	ListActivity(ctx context.Context, projectID string, limit int) ([]store.ActivityEvent, error)

	ListAPIKeys(ctx context.Context, projectID string) ([]store.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string) error

	Ping(ctx context.Context) error
}

// sessionStore holds refresh sessions, in Redis or in Postgres.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	bus      *cqrs.Bus
	engine   *quality.Engine
	runner   *quality.Runner
	search   *search.Service
	export   *export.Service
	apikeys  *apikey.Service
}

func New(
	cfg config.Config,
	dataStore dataStore,
	sessions sessionStore,
	bus *cqrs.Bus,
	engine *quality.Engine,
	runner *quality.Runner,
	searchSvc *search.Service,
	exportSvc *export.Service,
	apikeys *apikey.Service,
) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		bus:      bus,
		engine:   engine,
		runner:   runner,
		search:   searchSvc,
		export:   exportSvc,
		apikeys:  apikeys,
	}
	s.registerCommands()
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- sessions ---

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// Rotate: the presented refresh token is single use.
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// SessionFromAPIKey resolves an API key into a session acting as the key's
// creator, scoped to the key's project by the caller.
func (s *Service) SessionFromAPIKey(ctx context.Context, token string) (Session, string, error) {
	key, err := s.apikeys.Verify(ctx, token)
	if err != nil {
		return Session{}, "", err
	}
	user, err := s.store.GetUserByID(ctx, key.CreatedBy)
	if err != nil {
		return Session{}, "", err
	}
	return Session{
		UserID:   user.ID,
		UserName: user.DisplayName,
	}, key.ProjectID, nil
}

// --- projects ---

var allowedRoles = map[string]struct{}{
	"OWNER":     {},
	"MANAGER":   {},
	"DEVELOPER": {},
}

func (s *Service) CreateProject(ctx context.Context, session Session, name, slug, defaultLanguage string, languages []string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("name is required")
	}
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		slug = slugify(name)
	}
	defaultLanguage = strings.TrimSpace(defaultLanguage)
	if defaultLanguage == "" {
		return nil, errValidation("defaultLanguage is required")
	}
	if !containsString(languages, defaultLanguage) {
		languages = append([]string{defaultLanguage}, languages...)
	}

	project := store.Project{
		ID:              util.NewID("prj"),
		Name:            name,
		Slug:            slug,
		DefaultLanguage: defaultLanguage,
		Languages:       languages,
		QualityConfig:   "{}",
	}
	if err := s.store.InsertProject(ctx, project, session.UserID); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, errValidation("a project with this slug already exists")
		}
		return nil, err
	}

	s.recordActivity(ctx, project.ID, "", "project.created", session.UserName, map[string]any{
		"name": name,
	})
	return projectPayload(project, "OWNER"), nil
}

func (s *Service) ListProjects(ctx context.Context, session Session) ([]map[string]any, error) {
	projects, err := s.store.ListProjectsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		role, err := s.store.GetMemberRole(ctx, session.UserID, project.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, projectPayload(project, role))
	}
	return items, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	result, err := s.executeCommand(ctx, session, getProjectCommand{projectID: projectID})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) AddMember(ctx context.Context, session Session, projectID, userName, role string) (map[string]any, error) {
	result, err := s.executeCommand(ctx, session, addMemberCommand{
		projectID: projectID, userName: userName, role: role,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

// --- spaces ---

func (s *Service) CreateSpace(ctx context.Context, session Session, projectID, name, description string) (map[string]any, error) {
	result, err := s.executeCommand(ctx, session, createSpaceCommand{
		projectID: projectID, name: name, description: description,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) ListSpaces(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	result, err := s.executeCommand(ctx, session, listSpacesCommand{projectID: projectID})
	if err != nil {
		return nil, err
	}
	return result.([]map[string]any), nil
}

// --- branches ---

func (s *Service) CreateBranch(ctx context.Context, session Session, spaceID, name, fromBranchID string) (map[string]any, error) {
	space, err := s.store.GetSpace(ctx, spaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("space")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, createBranchCommand{
		projectID: space.ProjectID, spaceID: spaceID, name: name, fromBranchID: fromBranchID,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) ListBranches(ctx context.Context, session Session, spaceID string) ([]map[string]any, error) {
	space, err := s.store.GetSpace(ctx, spaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("space")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, listBranchesCommand{
		projectID: space.ProjectID, spaceID: spaceID,
	})
	if err != nil {
		return nil, err
	}
	return result.([]map[string]any), nil
}

func (s *Service) GetBranchKeys(ctx context.Context, session Session, branchID string) (map[string]any, error) {
	projectID, err := s.store.GetBranchProjectID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("branch")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, listKeysCommand{projectID: projectID, branchID: branchID})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) UpsertKey(ctx context.Context, session Session, branchID, name string, translations map[string]string) (map[string]any, error) {
	projectID, err := s.store.GetBranchProjectID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("branch")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, upsertKeyCommand{
		projectID: projectID, branchID: branchID, name: name, translations: translations,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) SetTranslationStatus(ctx context.Context, session Session, translationID, status string) (map[string]any, error) {
	projectID, err := s.store.GetTranslationProjectID(ctx, translationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("translation")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, setTranslationStatusCommand{
		projectID: projectID, translationID: translationID, status: status,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

// --- activity, search, export, api keys ---

func (s *Service) ListActivity(ctx context.Context, session Session, projectID string, limit int) ([]map[string]any, error) {
	result, err := s.executeCommand(ctx, session, listActivityCommand{projectID: projectID, limit: limit})
	if err != nil {
		return nil, err
	}
	return result.([]map[string]any), nil
}

func (s *Service) Search(ctx context.Context, session Session, q search.Query) (search.Response, error) {
	result, err := s.executeCommand(ctx, session, searchCommand{query: q})
	if err != nil {
		return search.Response{}, err
	}
	return result.(search.Response), nil
}

func (s *Service) ExportBranch(ctx context.Context, session Session, branchID string, upload bool) (map[string]any, error) {
	projectID, err := s.store.GetBranchProjectID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("branch")
		}
		return nil, err
	}
	result, err := s.executeCommand(ctx, session, exportBranchCommand{
		projectID: projectID, branchID: branchID, upload: upload,
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) CreateAPIKey(ctx context.Context, session Session, projectID, name string) (map[string]any, error) {
	result, err := s.executeCommand(ctx, session, createAPIKeyCommand{projectID: projectID, name: name})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (s *Service) ListAPIKeys(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	result, err := s.executeCommand(ctx, session, listAPIKeysCommand{projectID: projectID})
	if err != nil {
		return nil, err
	}
	return result.([]map[string]any), nil
}

func (s *Service) RevokeAPIKey(ctx context.Context, session Session, projectID, keyID string) error {
	_, err := s.executeCommand(ctx, session, revokeAPIKeyCommand{projectID: projectID, keyID: keyID})
	return err
}

// --- helpers ---

func (s *Service) executeCommand(ctx context.Context, session Session, cmd cqrs.Command) (any, error) {
	result, err := s.bus.Execute(ctx, session.actor(), cmd)
	if err != nil {
		if errors.Is(err, cqrs.ErrForbidden) {
			return nil, errForbidden()
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) Can(ctx context.Context, session Session, projectID string, action rbac.Action) bool {
	role, err := s.store.GetMemberRole(ctx, session.UserID, projectID)
	if err != nil {
		return false
	}
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) recordActivity(ctx context.Context, projectID, branchID, eventType, actor string, metadata map[string]any) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		payload = []byte("{}")
	}
	if err := s.store.InsertActivity(ctx, store.ActivityEvent{
		ProjectID: projectID,
		BranchID:  branchID,
		Type:      eventType,
		Actor:     actor,
		Metadata:  string(payload),
	}); err != nil {
		// Activity is an audit trail, not a ledger; losing an event must not
		// fail the operation that produced it.
		log.Printf("activity: record %s failed: %v", eventType, err)
	}
}

func projectPayload(p store.Project, role string) map[string]any {
	var cfg quality.Config
	_ = json.Unmarshal([]byte(p.QualityConfig), &cfg)
	return map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"slug":            p.Slug,
		"defaultLanguage": p.DefaultLanguage,
		"languages":       p.Languages,
		"qualityConfig":   cfg,
		"role":            role,
	}
}

func branchPayload(b store.Branch) map[string]any {
	return map[string]any{
		"id":          b.ID,
		"spaceId":     b.SpaceID,
		"name":        b.Name,
		"isDefault":   b.IsDefault,
		"createdFrom": b.CreatedFrom,
		"version":     b.Version,
	}
}

func slugify(name string) string {
	var out []rune
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	return strings.Trim(string(out), "-")
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func sortedStrings(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}

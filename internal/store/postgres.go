package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, display_name, email FROM users WHERE display_name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	const insertUser = `
		INSERT INTO users (display_name, email)
		VALUES ($1, CONCAT(LOWER(REPLACE($1, ' ', '.')), '@local.lingx.dev'))
		RETURNING id, display_name, email
	`
	if err := s.db.QueryRowContext(ctx, insertUser, name).Scan(&user.ID, &user.DisplayName, &user.Email); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name, email FROM users WHERE id=$1`, userID).
		Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// --- refresh sessions (Postgres fallback when Redis is not configured) ---

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user User, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, user.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// --- projects and memberships ---

func (s *PostgresStore) InsertProject(ctx context.Context, p Project, ownerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert project: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, slug, default_language, languages, quality_config)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.Slug, p.DefaultLanguage, encodeLanguages(p.Languages), p.QualityConfig); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_memberships (project_id, user_id, role)
		VALUES ($1, $2, 'OWNER')
	`, p.ID, ownerID); err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	var languages string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, default_language, languages, COALESCE(quality_config::text, '{}'), created_at, updated_at
		FROM projects WHERE id=$1
	`, projectID).Scan(&p.ID, &p.Name, &p.Slug, &p.DefaultLanguage, &languages, &p.QualityConfig, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	p.Languages = decodeLanguages(languages)
	return p, nil
}

func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.slug, p.default_language, p.languages, COALESCE(p.quality_config::text, '{}'), p.created_at, p.updated_at
		FROM projects p
		JOIN project_memberships pm ON pm.project_id = p.id
		WHERE pm.user_id = $1
		ORDER BY p.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var p Project
		var languages string
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.DefaultLanguage, &languages, &p.QualityConfig, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Languages = decodeLanguages(languages)
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateQualityConfig(ctx context.Context, projectID, configJSON string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET quality_config=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, projectID, configJSON)
	if err != nil {
		return fmt.Errorf("update quality config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetMemberRole returns the empty string for non-members.
func (s *PostgresStore) GetMemberRole(ctx context.Context, userID, projectID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM project_memberships WHERE user_id=$1 AND project_id=$2
	`, userID, projectID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read member role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) UpsertMembership(ctx context.Context, projectID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_memberships (project_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, projectID, userID, role)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

// --- spaces ---

func (s *PostgresStore) InsertSpace(ctx context.Context, space Space) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spaces (id, project_id, name, description)
		VALUES ($1, $2, $3, $4)
	`, space.ID, space.ProjectID, space.Name, space.Description)
	if err != nil {
		return fmt.Errorf("insert space: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSpace(ctx context.Context, spaceID string) (Space, error) {
	var space Space
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, COALESCE(description, ''), created_at FROM spaces WHERE id=$1
	`, spaceID).Scan(&space.ID, &space.ProjectID, &space.Name, &space.Description, &space.CreatedAt)
	if err != nil {
		return Space{}, err
	}
	return space, nil
}

func (s *PostgresStore) ListSpaces(ctx context.Context, projectID string) ([]Space, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, COALESCE(description, ''), created_at
		FROM spaces WHERE project_id=$1 ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	items := make([]Space, 0)
	for rows.Next() {
		var space Space
		if err := rows.Scan(&space.ID, &space.ProjectID, &space.Name, &space.Description, &space.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		items = append(items, space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spaces: %w", err)
	}
	return items, nil
}

// --- branches ---

func (s *PostgresStore) GetBranch(ctx context.Context, branchID string) (Branch, error) {
	var b Branch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, space_id, name, is_default, COALESCE(created_from, ''), version, created_at, updated_at
		FROM branches WHERE id=$1
	`, branchID).Scan(&b.ID, &b.SpaceID, &b.Name, &b.IsDefault, &b.CreatedFrom, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Branch{}, err
	}
	return b, nil
}

func (s *PostgresStore) ListBranches(ctx context.Context, spaceID string) ([]Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, space_id, name, is_default, COALESCE(created_from, ''), version, created_at, updated_at
		FROM branches WHERE space_id=$1 ORDER BY is_default DESC, created_at ASC
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	items := make([]Branch, 0)
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.SpaceID, &b.Name, &b.IsDefault, &b.CreatedFrom, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertBranch(ctx context.Context, b Branch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, space_id, name, is_default, created_from)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
	`, b.ID, b.SpaceID, b.Name, b.IsDefault, b.CreatedFrom)
	if err != nil {
		return fmt.Errorf("insert branch: %w", err)
	}
	return nil
}

// CreateBranchFrom clones the parent branch's content into a new branch and
// snapshots the fork point. The snapshot is the common ancestor for three-way
// diffs against the parent.
func (s *PostgresStore) CreateBranchFrom(ctx context.Context, b Branch, parentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin branch clone: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO branches (id, space_id, name, is_default, created_from)
		VALUES ($1, $2, $3, false, $4)
	`, b.ID, b.SpaceID, b.Name, parentID); err != nil {
		return fmt.Errorf("insert branch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO translation_keys (id, branch_id, name)
		SELECT 'key_' || substr(md5(random()::text || k.id), 1, 24), $1, k.name
		FROM translation_keys k WHERE k.branch_id=$2
	`, b.ID, parentID); err != nil {
		return fmt.Errorf("clone keys: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO translations (id, key_id, language, value, status)
		SELECT 'tr_' || substr(md5(random()::text || t.id), 1, 24), nk.id, t.language, t.value, t.status
		FROM translations t
		JOIN translation_keys ok ON ok.id = t.key_id AND ok.branch_id = $2
		JOIN translation_keys nk ON nk.branch_id = $1 AND nk.name = ok.name
	`, b.ID, parentID); err != nil {
		return fmt.Errorf("clone translations: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO branch_base_translations (branch_id, key_name, language, value)
		SELECT $1, k.name, t.language, t.value
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id AND k.branch_id = $2
	`, b.ID, parentID); err != nil {
		return fmt.Errorf("snapshot fork point: %w", err)
	}

	return tx.Commit()
}

// GetBranchProjectID resolves the project a branch belongs to, for
// authorization checks.
func (s *PostgresStore) GetBranchProjectID(ctx context.Context, branchID string) (string, error) {
	var projectID string
	err := s.db.QueryRowContext(ctx, `
		SELECT sp.project_id
		FROM branches b JOIN spaces sp ON sp.id = b.space_id
		WHERE b.id=$1
	`, branchID).Scan(&projectID)
	if err != nil {
		return "", err
	}
	return projectID, nil
}

func (s *PostgresStore) bumpBranchVersion(ctx context.Context, q queryer, branchID string) error {
	_, err := q.ExecContext(ctx, `UPDATE branches SET version=version+1, updated_at=NOW() WHERE id=$1`, branchID)
	if err != nil {
		return fmt.Errorf("bump branch version: %w", err)
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// --- keys and translations ---

func (s *PostgresStore) UpsertKey(ctx context.Context, branchID, name string) (TranslationKey, error) {
	var key TranslationKey
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO translation_keys (id, branch_id, name)
		VALUES ('key_' || substr(md5(random()::text), 1, 24), $1, $2)
		ON CONFLICT (branch_id, name) DO UPDATE SET name=EXCLUDED.name
		RETURNING id, branch_id, name, created_at
	`, branchID, name).Scan(&key.ID, &key.BranchID, &key.Name, &key.CreatedAt)
	if err != nil {
		return TranslationKey{}, fmt.Errorf("upsert key: %w", err)
	}
	if err := s.bumpBranchVersion(ctx, s.db, branchID); err != nil {
		return TranslationKey{}, err
	}
	return key, nil
}

func (s *PostgresStore) UpsertTranslation(ctx context.Context, keyID, language, value string) (Translation, error) {
	var tr Translation
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO translations (id, key_id, language, value, status)
		VALUES ('tr_' || substr(md5(random()::text), 1, 24), $1, $2, $3, 'PENDING')
		ON CONFLICT (key_id, language) DO UPDATE SET value=EXCLUDED.value, status='PENDING', updated_at=NOW()
		RETURNING id, key_id, language, value, status, updated_at
	`, keyID, language, value).Scan(&tr.ID, &tr.KeyID, &tr.Language, &tr.Value, &tr.Status, &tr.UpdatedAt)
	if err != nil {
		return Translation{}, fmt.Errorf("upsert translation: %w", err)
	}
	var branchID string
	if err := s.db.QueryRowContext(ctx, `SELECT branch_id FROM translation_keys WHERE id=$1`, keyID).Scan(&branchID); err != nil {
		return Translation{}, fmt.Errorf("resolve branch: %w", err)
	}
	if err := s.bumpBranchVersion(ctx, s.db, branchID); err != nil {
		return Translation{}, err
	}
	return tr, nil
}

func (s *PostgresStore) SetTranslationStatus(ctx context.Context, translationID, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE translations SET status=$2, updated_at=NOW() WHERE id=$1
	`, translationID, status)
	if err != nil {
		return fmt.Errorf("set translation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetTranslation(ctx context.Context, translationID string) (Translation, error) {
	var tr Translation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key_id, language, value, status, updated_at FROM translations WHERE id=$1
	`, translationID).Scan(&tr.ID, &tr.KeyID, &tr.Language, &tr.Value, &tr.Status, &tr.UpdatedAt)
	if err != nil {
		return Translation{}, err
	}
	return tr, nil
}

// GetTranslationProjectID resolves ownership for authorization.
func (s *PostgresStore) GetTranslationProjectID(ctx context.Context, translationID string) (string, error) {
	var projectID string
	err := s.db.QueryRowContext(ctx, `
		SELECT sp.project_id
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		JOIN branches b ON b.id = k.branch_id
		JOIN spaces sp ON sp.id = b.space_id
		WHERE t.id=$1
	`, translationID).Scan(&projectID)
	if err != nil {
		return "", err
	}
	return projectID, nil
}

// ListBranchKeys returns every key on the branch with its translations.
func (s *PostgresStore) ListBranchKeys(ctx context.Context, branchID string) ([]TranslationKey, map[string][]Translation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, name, created_at FROM translation_keys WHERE branch_id=$1 ORDER BY name ASC
	`, branchID)
	if err != nil {
		return nil, nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]TranslationKey, 0)
	for rows.Next() {
		var key TranslationKey
		if err := rows.Scan(&key.ID, &key.BranchID, &key.Name, &key.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate keys: %w", err)
	}

	trRows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.key_id, t.language, t.value, t.status, t.updated_at
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		WHERE k.branch_id=$1
		ORDER BY t.language ASC
	`, branchID)
	if err != nil {
		return nil, nil, fmt.Errorf("list translations: %w", err)
	}
	defer trRows.Close()

	byKey := make(map[string][]Translation)
	for trRows.Next() {
		var tr Translation
		if err := trRows.Scan(&tr.ID, &tr.KeyID, &tr.Language, &tr.Value, &tr.Status, &tr.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan translation: %w", err)
		}
		byKey[tr.KeyID] = append(byKey[tr.KeyID], tr)
	}
	if err := trRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate translations: %w", err)
	}
	return keys, byKey, nil
}

// --- activity ---

func (s *PostgresStore) InsertActivity(ctx context.Context, event ActivityEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_events (project_id, branch_id, type, actor, metadata)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5::jsonb)
	`, event.ProjectID, event.BranchID, event.Type, event.Actor, event.Metadata)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivity(ctx context.Context, projectID string, limit int) ([]ActivityEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, COALESCE(branch_id, ''), type, actor, COALESCE(metadata::text, '{}'), created_at
		FROM activity_events WHERE project_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityEvent, 0)
	for rows.Next() {
		var e ActivityEvent
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.BranchID, &e.Type, &e.Actor, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

// --- API keys ---

func (s *PostgresStore) InsertAPIKey(ctx context.Context, key APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, project_id, name, secret_hash, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, key.ID, key.ProjectID, key.Name, key.SecretHash, key.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKey(ctx context.Context, keyID string) (APIKey, error) {
	var key APIKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, secret_hash, created_by, last_used_at, created_at
		FROM api_keys WHERE id=$1 AND revoked_at IS NULL
	`, keyID).Scan(&key.ID, &key.ProjectID, &key.Name, &key.SecretHash, &key.CreatedBy, &key.LastUsedAt, &key.CreatedAt)
	if err != nil {
		return APIKey{}, err
	}
	return key, nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, projectID string) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, '', created_by, last_used_at, created_at
		FROM api_keys WHERE project_id=$1 AND revoked_at IS NULL
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	items := make([]APIKey, 0)
	for rows.Next() {
		var key APIKey
		if err := rows.Scan(&key.ID, &key.ProjectID, &key.Name, &key.SecretHash, &key.CreatedBy, &key.LastUsedAt, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		items = append(items, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, keyID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`, keyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) TouchAPIKey(ctx context.Context, keyID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at=NOW() WHERE id=$1`, keyID)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// --- helpers ---

// Languages are stored as a comma-separated list; Postgres arrays would also
// do, but this keeps scanning trivial.
func encodeLanguages(langs []string) string {
	return strings.Join(langs, ",")
}

func decodeLanguages(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, used to map duplicate names to a validation error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

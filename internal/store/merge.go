package store

import (
	"context"
	"errors"
	"fmt"

	"lingx/api/internal/branch"
)

// ErrStaleBranch is returned by ApplyMerge when the target branch version no
// longer matches the version the caller diffed against.
var ErrStaleBranch = errors.New("branch modified since diff")

// LoadBranchSnapshot reads the branch's current content as key name ->
// language -> value.
func (s *PostgresStore) LoadBranchSnapshot(ctx context.Context, branchID string) (branch.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.name, t.language, t.value
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		WHERE k.branch_id=$1
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("load branch snapshot: %w", err)
	}
	defer rows.Close()

	snap := branch.Snapshot{}
	for rows.Next() {
		var key, lang, value string
		if err := rows.Scan(&key, &lang, &value); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if snap[key] == nil {
			snap[key] = map[string]string{}
		}
		snap[key][lang] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return snap, nil
}

// LoadBranchBaseSnapshot reads the fork-point snapshot recorded when the
// branch was created. An empty snapshot means the branch was not forked.
func (s *PostgresStore) LoadBranchBaseSnapshot(ctx context.Context, branchID string) (branch.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key_name, language, value FROM branch_base_translations WHERE branch_id=$1
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("load base snapshot: %w", err)
	}
	defer rows.Close()

	snap := branch.Snapshot{}
	for rows.Next() {
		var key, lang, value string
		if err := rows.Scan(&key, &lang, &value); err != nil {
			return nil, fmt.Errorf("scan base row: %w", err)
		}
		if snap[key] == nil {
			snap[key] = map[string]string{}
		}
		snap[key][lang] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate base snapshot: %w", err)
	}
	return snap, nil
}

// ApplyMerge writes a merge plan into the target branch in one transaction.
// The target row is locked and its version compared against expectedVersion;
// a mismatch aborts with ErrStaleBranch so the caller can re-diff.
func (s *PostgresStore) ApplyMerge(ctx context.Context, targetBranchID string, expectedVersion int64, plan branch.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	if err := tx.QueryRowContext(ctx, `
		SELECT version FROM branches WHERE id=$1 FOR UPDATE
	`, targetBranchID).Scan(&version); err != nil {
		return fmt.Errorf("lock target branch: %w", err)
	}
	if version != expectedVersion {
		return ErrStaleBranch
	}

	for _, change := range plan.Upserts {
		var keyID string
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO translation_keys (id, branch_id, name)
			VALUES ('key_' || substr(md5(random()::text), 1, 24), $1, $2)
			ON CONFLICT (branch_id, name) DO UPDATE SET name=EXCLUDED.name
			RETURNING id
		`, targetBranchID, change.Key).Scan(&keyID); err != nil {
			return fmt.Errorf("merge key %q: %w", change.Key, err)
		}
		for lang, value := range change.Values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO translations (id, key_id, language, value, status)
				VALUES ('tr_' || substr(md5(random()::text), 1, 24), $1, $2, $3, 'PENDING')
				ON CONFLICT (key_id, language) DO UPDATE SET
					value=EXCLUDED.value,
					status=CASE WHEN translations.value = EXCLUDED.value THEN translations.status ELSE 'PENDING' END,
					updated_at=NOW()
			`, keyID, lang, value); err != nil {
				return fmt.Errorf("merge translation %s/%s: %w", change.Key, lang, err)
			}
		}
	}

	for _, keyName := range plan.Deletes {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM translation_keys WHERE branch_id=$1 AND name=$2
		`, targetBranchID, keyName); err != nil {
			return fmt.Errorf("delete key %q: %w", keyName, err)
		}
	}

	if err := s.bumpBranchVersion(ctx, tx, targetBranchID); err != nil {
		return err
	}

	// The target now contains the source's changes; refresh the source
	// branch's fork point so a later diff starts clean.
	return tx.Commit()
}

// RefreshBaseSnapshot replaces a branch's fork-point snapshot with the
// content of another branch, called after a successful merge so subsequent
// diffs do not re-report merged changes.
func (s *PostgresStore) RefreshBaseSnapshot(ctx context.Context, branchID, fromBranchID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot refresh: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM branch_base_translations WHERE branch_id=$1
	`, branchID); err != nil {
		return fmt.Errorf("clear base snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO branch_base_translations (branch_id, key_name, language, value)
		SELECT $1, k.name, t.language, t.value
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id AND k.branch_id = $2
	`, branchID, fromBranchID); err != nil {
		return fmt.Errorf("refresh base snapshot: %w", err)
	}
	return tx.Commit()
}

package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// The tsvectors are computed per query; key names and translation values are
// short, so this stays cheap at fallback scale.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across translation keys and translations
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultKey {
		keyWhere := "to_tsvector('simple', replace(k.name, '.', ' ')) @@ " + tsQuery
		if q.FilterProjectID != "" {
			keyWhere += fmt.Sprintf(" AND sp.project_id = $%d", argN)
			args = append(args, q.FilterProjectID)
			argN++
		}
		if q.FilterBranchID != "" {
			keyWhere += fmt.Sprintf(" AND k.branch_id = $%d", argN)
			args = append(args, q.FilterBranchID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'key'::text AS type, k.id, k.name AS key_name,
				''::text AS snippet, ''::text AS language,
				k.branch_id, sp.project_id,
				ts_rank(to_tsvector('simple', replace(k.name, '.', ' ')), %s) AS rank
			FROM translation_keys k
			JOIN branches b ON b.id = k.branch_id
			JOIN spaces sp ON sp.id = b.space_id
			WHERE %s`, tsQuery, keyWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultTranslation {
		trWhere := "to_tsvector('simple', t.value) @@ " + tsQuery
		if q.FilterProjectID != "" {
			trWhere += fmt.Sprintf(" AND sp.project_id = $%d", argN)
			args = append(args, q.FilterProjectID)
			argN++
		}
		if q.FilterBranchID != "" {
			trWhere += fmt.Sprintf(" AND k.branch_id = $%d", argN)
			args = append(args, q.FilterBranchID)
			argN++
		}
		if q.FilterLanguage != "" {
			trWhere += fmt.Sprintf(" AND t.language = $%d", argN)
			args = append(args, q.FilterLanguage)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'translation'::text AS type, t.id, k.name AS key_name,
				ts_headline('simple', t.value, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.language,
				k.branch_id, sp.project_id,
				ts_rank(to_tsvector('simple', t.value), %s) AS rank
			FROM translations t
			JOIN translation_keys k ON k.id = t.key_id
			JOIN branches b ON b.id = k.branch_id
			JOIN spaces sp ON sp.id = b.space_id
			WHERE %s`, tsQuery, tsQuery, trWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, key_name, snippet, language, branch_id, project_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.KeyName, &r.Snippet, &r.Language, &r.BranchID, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]KeyRecord, []TranslationRecord, error) {
	keyRows, err := p.db.QueryContext(ctx, `
		SELECT k.id, k.name, k.branch_id, sp.project_id
		FROM translation_keys k
		JOIN branches b ON b.id = k.branch_id
		JOIN spaces sp ON sp.id = b.space_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load keys: %w", err)
	}
	defer keyRows.Close()

	keys := make([]KeyRecord, 0)
	for keyRows.Next() {
		var k KeyRecord
		if err := keyRows.Scan(&k.ID, &k.Name, &k.BranchID, &k.ProjectID); err != nil {
			return nil, nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := keyRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate keys: %w", err)
	}

	trRows, err := p.db.QueryContext(ctx, `
		SELECT t.id, k.name, t.language, t.value, t.status, k.branch_id, sp.project_id
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		JOIN branches b ON b.id = k.branch_id
		JOIN spaces sp ON sp.id = b.space_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load translations: %w", err)
	}
	defer trRows.Close()

	translations := make([]TranslationRecord, 0)
	for trRows.Next() {
		var t TranslationRecord
		if err := trRows.Scan(&t.ID, &t.KeyName, &t.Language, &t.Value, &t.Status, &t.BranchID, &t.ProjectID); err != nil {
			return nil, nil, fmt.Errorf("scan translation: %w", err)
		}
		translations = append(translations, t)
	}
	if err := trRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate translations: %w", err)
	}

	return keys, translations, nil
}

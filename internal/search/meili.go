package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxKeys         = "lingx_keys"
	idxTranslations = "lingx_translations"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An unreachable
// instance is tolerated; the health loop will pick it up when it comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxKeys,
			filterable: []string{"projectId", "branchId"},
			searchable: []string{"name"},
		},
		{
			uid:        idxTranslations,
			filterable: []string{"projectId", "branchId", "language", "status"},
			searchable: []string{"value", "keyName"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxKeys, ResultKey},
		{idxTranslations, ResultTranslation},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}

		var filters []string
		if q.FilterProjectID != "" {
			filters = append(filters, fmt.Sprintf("projectId = %q", q.FilterProjectID))
		}
		if q.FilterBranchID != "" {
			filters = append(filters, fmt.Sprintf("branchId = %q", q.FilterBranchID))
		}
		if q.FilterLanguage != "" && ti.rtyp == ResultTranslation {
			filters = append(filters, fmt.Sprintf("language = %q", q.FilterLanguage))
		}
		if len(filters) > 0 {
			sr.Filter = filters
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxKeys:
		return ResultKey
	case idxTranslations:
		return ResultTranslation
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.BranchID = decodeString(hit, "branchId")
	r.ProjectID = decodeString(hit, "projectId")

	switch rtyp {
	case ResultKey:
		r.KeyName = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
	case ResultTranslation:
		r.KeyName = firstNonBlank(decodeFormattedString(hit, "keyName"), decodeString(hit, "keyName"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "value"), decodeString(hit, "value"))
		r.Language = decodeString(hit, "language")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexKey adds or updates a translation key in the search index.
func (m *Meili) IndexKey(k KeyRecord) error {
	_, err := m.client.Index(idxKeys).AddDocuments([]KeyRecord{k}, nil)
	return err
}

// IndexTranslation adds or updates a translated value in the search index.
func (m *Meili) IndexTranslation(t TranslationRecord) error {
	_, err := m.client.Index(idxTranslations).AddDocuments([]TranslationRecord{t}, nil)
	return err
}

// DeleteKey removes a translation key from the search index.
func (m *Meili) DeleteKey(id string) error {
	_, err := m.client.Index(idxKeys).DeleteDocument(id, nil)
	return err
}

// DeleteTranslation removes a translated value from the search index.
func (m *Meili) DeleteTranslation(id string) error {
	_, err := m.client.Index(idxTranslations).DeleteDocument(id, nil)
	return err
}

// IndexKeys bulk-indexes translation keys.
func (m *Meili) IndexKeys(keys []KeyRecord) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := m.client.Index(idxKeys).AddDocuments(keys, nil)
	return err
}

// IndexTranslations bulk-indexes translated values.
func (m *Meili) IndexTranslations(translations []TranslationRecord) error {
	if len(translations) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTranslations).AddDocuments(translations, nil)
	return err
}

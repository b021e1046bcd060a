package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexKey indexes a translation key (fire-and-forget to Meilisearch).
func (s *Service) IndexKey(k KeyRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexKey(k); err != nil {
			log.Printf("search: index key %s: %v", k.ID, err)
		}
	}()
}

// IndexTranslation indexes a translated value (fire-and-forget to Meilisearch).
func (s *Service) IndexTranslation(t TranslationRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTranslation(t); err != nil {
			log.Printf("search: index translation %s: %v", t.ID, err)
		}
	}()
}

// DeleteKey removes a translation key from the search index (fire-and-forget).
func (s *Service) DeleteKey(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteKey(id); err != nil {
			log.Printf("search: delete key %s: %v", id, err)
		}
	}()
}

// DeleteTranslation removes a translated value from the search index
// (fire-and-forget).
func (s *Service) DeleteTranslation(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTranslation(id); err != nil {
			log.Printf("search: delete translation %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into
// Meilisearch, typically once at startup.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	keys, translations, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexKeys(keys); err != nil {
		log.Printf("search: reindex keys: %v", err)
	}
	if err := s.meili.IndexTranslations(translations); err != nil {
		log.Printf("search: reindex translations: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

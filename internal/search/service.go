package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres LIKE lookup.
type Service struct {
	meili *Meili
	pg    *Pg
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pg *Pg) *Service {
	return &Service{meili: meili, pg: pg}
}

// Lookup tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Lookup(ctx context.Context, q Query) ([]string, error) {
	if s.meili != nil && s.meili.Healthy() {
		ids, err := s.meili.Lookup(ctx, q)
		if err == nil {
			return ids, nil
		}
		log.Printf("search: meilisearch error, falling back to pg: %v", err)
	}
	return s.pg.Lookup(ctx, q)
}

// IndexCollection indexes a collection (fire-and-forget to Meilisearch).
func (s *Service) IndexCollection(rec Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexCollection(rec); err != nil {
			log.Printf("search: index collection %s: %v", rec.ID, err)
		}
	}()
}

// DeleteCollection removes a collection from the index (fire-and-forget).
func (s *Service) DeleteCollection(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteCollection(id); err != nil {
			log.Printf("search: delete collection %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes every collection from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	records, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexCollections(records); err != nil {
		log.Printf("search: reindex collections: %v", err)
	}
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxCollections = "archive_collections"

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the collections index.
// The caller should proceed without it if the initial connection fails; the
// health monitor will pick it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	// Initial health check
	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxCollections,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxCollections, err)
	}

	index := m.client.Index(idxCollections)
	filterable := []interface{}{"closed"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxCollections, err)
	}
	searchable := []string{"name", "title"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxCollections, err)
	}
	sortable := []string{"score"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("search: update sortable attrs for %s: %v", idxCollections, err)
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
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
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

// Lookup queries the collections index, best score first.
func (m *Meili) Lookup(_ context.Context, q Query) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 10
	}

	sr := &meili.SearchRequest{
		Limit: limit,
		Sort:  []string{"score:desc"},
	}
	switch q.Bucket {
	case BucketOpen:
		sr.Filter = "closed = false"
	case BucketClosed:
		sr.Filter = "closed = true"
	}

	resp, err := m.client.Index(idxCollections).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch lookup: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
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

// IndexCollection adds or updates a collection in the autocomplete index.
func (m *Meili) IndexCollection(rec Record) error {
	_, err := m.client.Index(idxCollections).AddDocuments([]Record{rec}, nil)
	return err
}

// IndexCollections bulk-indexes collections, for reindexing from the database.
func (m *Meili) IndexCollections(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCollections).AddDocuments(records, nil)
	return err
}

// DeleteCollection removes a collection from the autocomplete index.
func (m *Meili) DeleteCollection(id string) error {
	_, err := m.client.Index(idxCollections).DeleteDocument(id, nil)
	return err
}

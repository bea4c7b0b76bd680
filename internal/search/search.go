// Package search maintains the collection autocomplete index: a composite
// search string over name and title, a relevance score summed from approved
// work and bookmark counts, and open/closed prefix buckets.
package search

import "context"

// Bucket selects which collections a lookup may return.
type Bucket string

const (
	BucketAll    Bucket = "all"
	BucketOpen   Bucket = "open"
	BucketClosed Bucket = "closed"
)

// Record is the data we index for a collection.
type Record struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Title  string `json:"title"`
	Score  int    `json:"score"`
	Closed bool   `json:"closed"`
}

// SearchString is the composite string the index matches against.
func (r Record) SearchString() string {
	return r.Name + " " + r.Title
}

// Query describes an autocomplete lookup.
type Query struct {
	Text   string
	Bucket Bucket
	Limit  int
}

// Searcher can execute an autocomplete lookup, returning ordered collection ids.
type Searcher interface {
	Lookup(ctx context.Context, q Query) ([]string, error)
	Healthy() bool
}

// Indexer can push collections into the autocomplete index.
type Indexer interface {
	IndexCollection(rec Record) error
	DeleteCollection(id string) error
}

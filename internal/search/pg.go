package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Pg implements Searcher against PostgreSQL as a fallback, matching name and
// title with LIKE and ranking by summed approved item counts across each
// collection and its children.
type Pg struct {
	db *sql.DB
}

// NewPg creates a PostgreSQL fallback searcher.
func NewPg(db *sql.DB) *Pg {
	return &Pg{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *Pg) Healthy() bool {
	return true
}

// Lookup matches collections by name or title, highest item count first.
func (p *Pg) Lookup(ctx context.Context, q Query) ([]string, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	where := `(c.name ILIKE '%' || $1 || '%' OR c.title ILIKE '%' || $1 || '%')`
	args := []any{text}
	switch q.Bucket {
	case BucketOpen:
		where += ` AND NOT cp.closed`
	case BucketClosed:
		where += ` AND cp.closed`
	}
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id
		FROM collections c
		JOIN collection_preferences cp ON cp.collection_id = c.id
		LEFT JOIN collections child ON child.parent_id = c.id
		LEFT JOIN collection_items ci ON (ci.collection_id = child.id OR ci.collection_id = c.id)
			AND ci.user_approval_status = 'approved'
			AND ci.collection_approval_status = 'approved'
		WHERE `+where+`
		GROUP BY c.id
		ORDER BY COUNT(DISTINCT ci.id) DESC, c.name ASC
		LIMIT $2
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("pg lookup: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lookup id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lookup ids: %w", err)
	}
	return ids, nil
}

// LoadAllRecords reads every collection's index record from Postgres, for
// reindexing into Meilisearch.
func (p *Pg) LoadAllRecords(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.title, cp.closed, COUNT(DISTINCT ci.id)
		FROM collections c
		JOIN collection_preferences cp ON cp.collection_id = c.id
		LEFT JOIN collections child ON child.parent_id = c.id
		LEFT JOIN collection_items ci ON (ci.collection_id = child.id OR ci.collection_id = c.id)
			AND ci.user_approval_status = 'approved'
			AND ci.collection_approval_status = 'approved'
		GROUP BY c.id, cp.closed
	`)
	if err != nil {
		return nil, fmt.Errorf("load index records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Title, &rec.Closed, &rec.Score); err != nil {
			return nil, fmt.Errorf("scan index record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index records: %w", err)
	}
	return records, nil
}

package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches chapters with PostgreSQL full-text search; the fallback
// when Meilisearch is not available.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search queries the generated chapters.search_vector column with
// plainto_tsquery and builds snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
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

	where := `search_vector @@ plainto_tsquery('simple', $1) AND ($2='' OR status=$2)`

	var total int
	countSQL := `SELECT count(*) FROM chapters WHERE ` + where
	if err := p.db.QueryRowContext(ctx, countSQL, q.Text, q.FilterStatus).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chapter search: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, chapter_code, title, status,
			ts_headline('simple', coalesce(edited_body, original_body, ''), plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM chapters
		WHERE %s
		ORDER BY ts_rank(search_vector, plainto_tsquery('simple', $1)) DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, q.Text, q.FilterStatus)
	if err != nil {
		return nil, 0, fmt.Errorf("chapter search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var item Result
		if err := rows.Scan(&item.ID, &item.Code, &item.Title, &item.Status, &item.Snippet); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every chapter for reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ChapterRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, chapter_code, title, status, coalesce(original_body, ''), coalesce(edited_body, '')
		FROM chapters
	`)
	if err != nil {
		return nil, fmt.Errorf("load chapters for reindex: %w", err)
	}
	defer rows.Close()

	records := make([]ChapterRecord, 0)
	for rows.Next() {
		var record ChapterRecord
		if err := rows.Scan(&record.ID, &record.Code, &record.Title, &record.Status, &record.Original, &record.Edited); err != nil {
			return nil, fmt.Errorf("scan chapter record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter records: %w", err)
	}
	return records, nil
}

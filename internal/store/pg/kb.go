package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"legacyplanner.org/internal/kb"
)

var _ kb.Store = (*Store)(nil)

// SearchArticles ranks with the generated tsvector column on kb_articles.
func (s *Store) SearchArticles(ctx context.Context, query string, limit int) ([]kb.Snippet, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, title,
		       ts_headline('english', body, q, 'MaxWords=40, MinWords=15, StartSel="", StopSel=""'),
		       ts_rank(search, q)
		from kb_articles, websearch_to_tsquery('english', $1) q
		where search @@ q
		order by ts_rank(search, q) desc, id
		limit $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []kb.Snippet{}
	for rows.Next() {
		var sn kb.Snippet
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Excerpt, &sn.Score); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *Store) ListFAQs(ctx context.Context) ([]kb.FAQ, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, question, answer, keywords
		from faqs
		order by position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []kb.FAQ{}
	for rows.Next() {
		var (
			f   kb.FAQ
			raw []byte
		)
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &raw); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &f.Keywords); err != nil {
				return nil, fmt.Errorf("decode faq %s keywords: %w", f.ID, err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"feed-hub/domain"
)

type articleRepository struct {
	db     DB
	logger *slog.Logger
}

// NewArticleRepository creates a new article repository.
func NewArticleRepository(db DB, logger *slog.Logger) ArticleRepository {
	return &articleRepository{db: db, logger: logger}
}

func (r *articleRepository) ExistingGUIDs(ctx context.Context, feedID int64, guids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(guids))
	if len(guids) == 0 {
		return existing, nil
	}

	query := `SELECT guid FROM articles WHERE feed_id = $1 AND guid = ANY($2)`

	rows, err := r.db.Query(ctx, query, feedID, guids)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing guids for feed %d: %w", feedID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("failed to scan guid: %w", err)
		}
		existing[guid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query existing guids for feed %d: %w", feedID, err)
	}
	return existing, nil
}

// InsertNew relies on the (feed_id, guid) uniqueness constraint as the
// source of truth: a row lost to a concurrent ingestion run is not returned
// and therefore never reaches fan-out.
func (r *articleRepository) InsertNew(ctx context.Context, articles []*domain.Article) ([]*domain.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	const cols = 9
	placeholders := make([]string, 0, len(articles))
	values := make([]any, 0, len(articles)*cols)

	for i, a := range articles {
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			i*cols+1, i*cols+2, i*cols+3, i*cols+4, i*cols+5, i*cols+6, i*cols+7, i*cols+8, i*cols+9,
		))
		values = append(values,
			a.FeedID, a.GUID, a.Title, a.URL, a.Author,
			a.Summary, a.Body, a.ImageURL, a.PublishedAt,
		)
	}

	query := `
		INSERT INTO articles (feed_id, guid, title, url, author, summary, body, image_url, published_at)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (feed_id, guid) DO NOTHING
		RETURNING id, guid`

	rows, err := r.db.Query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert articles: %w", err)
	}
	defer rows.Close()

	byGUID := make(map[string]*domain.Article, len(articles))
	for _, a := range articles {
		byGUID[a.GUID] = a
	}

	var inserted []*domain.Article
	for rows.Next() {
		var id int64
		var guid string
		if err := rows.Scan(&id, &guid); err != nil {
			return nil, fmt.Errorf("failed to scan inserted article: %w", err)
		}
		a, ok := byGUID[guid]
		if !ok {
			continue
		}
		a.ID = id
		inserted = append(inserted, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to insert articles: %w", err)
	}

	if len(inserted) < len(articles) {
		r.logger.InfoContext(ctx, "some articles lost insert race, excluded from fan-out",
			"candidates", len(articles), "inserted", len(inserted))
	}
	return inserted, nil
}

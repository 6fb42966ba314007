package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"feed-hub/domain"
)

type feedRepository struct {
	db     DB
	logger *slog.Logger
}

// NewFeedRepository creates a new feed repository.
func NewFeedRepository(db DB, logger *slog.Logger) FeedRepository {
	return &feedRepository{db: db, logger: logger}
}

const feedColumns = `id, url, title, description, site_url, image_url, category, last_fetched_at, created_at, updated_at`

func scanFeed(row pgx.Row) (*domain.Feed, error) {
	var f domain.Feed
	err := row.Scan(
		&f.ID, &f.URL, &f.Title, &f.Description, &f.SiteURL, &f.ImageURL,
		&f.Category, &f.LastFetchedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *feedRepository) GetByID(ctx context.Context, id int64) (*domain.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE id = $1`

	feed, err := scanFeed(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFeedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed %d: %w", id, err)
	}
	return feed, nil
}

func (r *feedRepository) GetOrCreateByURL(ctx context.Context, url string) (*domain.Feed, bool, error) {
	insert := `
		INSERT INTO feeds (url, title, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO NOTHING
		RETURNING ` + feedColumns

	feed, err := scanFeed(r.db.QueryRow(ctx, insert, url, domain.PlaceholderTitle, domain.CategoryOther))
	if err == nil {
		r.logger.InfoContext(ctx, "created feed", "url", url, "feed_id", feed.ID)
		return feed, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create feed for %s: %w", url, err)
	}

	// Conflict: someone holds this URL already.
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE url = $1`
	feed, err = scanFeed(r.db.QueryRow(ctx, query, url))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get feed for %s: %w", url, err)
	}
	return feed, false, nil
}

func (r *feedRepository) ListAll(ctx context.Context) ([]*domain.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*domain.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	return feeds, nil
}

func (r *feedRepository) UpdateMetadata(ctx context.Context, id int64, meta domain.FeedMetadata) error {
	query := `
		UPDATE feeds
		SET title = $2, description = $3, site_url = $4, image_url = $5, updated_at = now()
		WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, meta.Title, meta.Description, meta.SiteURL, meta.ImageURL); err != nil {
		return fmt.Errorf("failed to update feed %d metadata: %w", id, err)
	}
	return nil
}

func (r *feedRepository) TouchLastFetched(ctx context.Context, id int64) error {
	query := `UPDATE feeds SET last_fetched_at = now(), updated_at = now() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to touch feed %d: %w", id, err)
	}
	return nil
}

// Package repository provides postgres-backed persistence for feed-hub.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"feed-hub/domain"
)

// DB is the subset of pgxpool.Pool the repositories depend on. pgxmock
// satisfies it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// FeedRepository manages feed records.
type FeedRepository interface {
	// GetByID returns domain.ErrFeedNotFound when the id no longer exists.
	GetByID(ctx context.Context, id int64) (*domain.Feed, error)
	// GetOrCreateByURL finds the feed for a normalized URL, creating it with
	// a placeholder title on first subscription. The second result reports
	// whether a new record was created.
	GetOrCreateByURL(ctx context.Context, url string) (*domain.Feed, bool, error)
	// ListAll enumerates every known feed for the cron sweep.
	ListAll(ctx context.Context) ([]*domain.Feed, error)
	// UpdateMetadata applies freshly parsed feed-level metadata.
	UpdateMetadata(ctx context.Context, id int64, meta domain.FeedMetadata) error
	// TouchLastFetched records a successful fetch.
	TouchLastFetched(ctx context.Context, id int64) error
}

// ArticleRepository manages deduplicated article records.
type ArticleRepository interface {
	// ExistingGUIDs returns the subset of candidate GUIDs already persisted
	// for the feed.
	ExistingGUIDs(ctx context.Context, feedID int64, guids []string) (map[string]bool, error)
	// InsertNew bulk-inserts candidate articles. A candidate losing a
	// concurrent race on the (feed_id, guid) constraint is silently dropped;
	// only rows actually inserted are returned, with ids assigned.
	InsertNew(ctx context.Context, articles []*domain.Article) ([]*domain.Article, error)
}

// SubscriptionRepository reads and (for bulk import) creates user-feed
// subscriptions.
type SubscriptionRepository interface {
	// SubscriberIDs snapshots the current subscriber set of a feed.
	SubscriberIDs(ctx context.Context, feedID int64) ([]int64, error)
	// FeedIDsForUser lists the feed ids a user subscribes to.
	FeedIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	// Create adds a subscription, reporting false when it already existed.
	Create(ctx context.Context, sub *domain.Subscription) (bool, error)
}

// InteractionRepository manages per-user article read state.
type InteractionRepository interface {
	// InsertUnread bulk-creates one unread interaction per
	// (user x article) pair, skipping pairs that already exist.
	InsertUnread(ctx context.Context, userIDs []int64, articleIDs []int64) (int64, error)
}

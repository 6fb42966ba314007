package repository

import (
	"context"
	"fmt"
	"log/slog"

	"feed-hub/domain"
)

type subscriptionRepository struct {
	db     DB
	logger *slog.Logger
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(db DB, logger *slog.Logger) SubscriptionRepository {
	return &subscriptionRepository{db: db, logger: logger}
}

// SubscriberIDs is a best-effort snapshot, not a locked view: subscribers
// may appear or disappear between fetch start and fan-out.
func (r *subscriptionRepository) SubscriberIDs(ctx context.Context, feedID int64) ([]int64, error) {
	query := `SELECT user_id FROM user_feeds WHERE feed_id = $1`

	rows, err := r.db.Query(ctx, query, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers of feed %d: %w", feedID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query subscribers of feed %d: %w", feedID, err)
	}
	return ids, nil
}

func (r *subscriptionRepository) FeedIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT feed_id FROM user_feeds WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds of user %d: %w", userID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan feed id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query feeds of user %d: %w", userID, err)
	}
	return ids, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) (bool, error) {
	query := `
		INSERT INTO user_feeds (user_id, feed_id, title_override, category)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, feed_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, sub.UserID, sub.FeedID, sub.TitleOverride, sub.Category)
	if err != nil {
		return false, fmt.Errorf("failed to create subscription user=%d feed=%d: %w", sub.UserID, sub.FeedID, err)
	}

	created := tag.RowsAffected() == 1
	if created {
		r.logger.InfoContext(ctx, "subscription created", "user_id", sub.UserID, "feed_id", sub.FeedID)
	}
	return created, nil
}

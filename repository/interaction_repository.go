package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type interactionRepository struct {
	db     DB
	logger *slog.Logger
}

// NewInteractionRepository creates a new interaction repository.
func NewInteractionRepository(db DB, logger *slog.Logger) InteractionRepository {
	return &interactionRepository{db: db, logger: logger}
}

// InsertUnread creates the (user x article) cross product in one statement.
// ON CONFLICT protects the per-pair uniqueness invariant against races with
// concurrent mark-as-read calls, which may have created the row first.
func (r *interactionRepository) InsertUnread(ctx context.Context, userIDs []int64, articleIDs []int64) (int64, error) {
	if len(userIDs) == 0 || len(articleIDs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(userIDs)*len(articleIDs))
	values := make([]any, 0, len(userIDs)*len(articleIDs)*2)

	i := 0
	for _, userID := range userIDs {
		for _, articleID := range articleIDs {
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2))
			values = append(values, userID, articleID)
			i++
		}
	}

	query := `
		INSERT INTO user_articles (user_id, article_id)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (user_id, article_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, values...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert interactions: %w", err)
	}

	r.logger.InfoContext(ctx, "fan-out interactions created",
		"users", len(userIDs), "articles", len(articleIDs), "created", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

package service

import (
	"context"
	"log/slog"
	"strings"

	"feed-hub/domain"
	"feed-hub/repository"
)

// ImportResult reports the outcome of one bulk subscription import.
type ImportResult struct {
	Succeeded int
	Failed    int
	// Enqueued counts the ingest jobs spawned for newly created
	// subscriptions. Already-subscribed entries succeed without one.
	Enqueued int
}

// ImportService subscribes a user to a bulk list of feed URLs, typically
// parsed out of an OPML upload.
type ImportService struct {
	feeds  repository.FeedRepository
	subs   repository.SubscriptionRepository
	queue  Enqueuer
	logger *slog.Logger
}

// NewImportService wires the import dependencies.
func NewImportService(
	feeds repository.FeedRepository,
	subs repository.SubscriptionRepository,
	queue Enqueuer,
	logger *slog.Logger,
) *ImportService {
	return &ImportService{feeds: feeds, subs: subs, queue: queue, logger: logger}
}

// Import processes every entry independently. An entry the user already
// subscribes to counts as succeeded; only newly created subscriptions get an
// ingest job. One failing entry never aborts the rest.
func (s *ImportService) Import(ctx context.Context, userID int64, entries []domain.ImportEntry) (*ImportResult, error) {
	result := &ImportResult{}

	for _, entry := range entries {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			result.Failed++
			s.logger.WarnContext(ctx, "skipping import entry without url", "user_id", userID)
			continue
		}

		created, err := s.importOne(ctx, userID, url, entry)
		if err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "import entry failed",
				"user_id", userID, "url", url, "error", err)
			continue
		}

		result.Succeeded++
		if created {
			result.Enqueued++
		}
	}

	s.logger.InfoContext(ctx, "import finished",
		"user_id", userID,
		"entries", len(entries),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"ingest_jobs", result.Enqueued,
	)
	return result, nil
}

// importOne subscribes the user to one URL and reports whether a new
// subscription was created.
func (s *ImportService) importOne(ctx context.Context, userID int64, url string, entry domain.ImportEntry) (bool, error) {
	feed, _, err := s.feeds.GetOrCreateByURL(ctx, url)
	if err != nil {
		return false, err
	}

	sub := &domain.Subscription{
		UserID:        userID,
		FeedID:        feed.ID,
		TitleOverride: entry.TitleOverride,
		Category:      domain.ParseCategory(entry.Category),
	}
	created, err := s.subs.Create(ctx, sub)
	if err != nil {
		return false, err
	}
	if !created {
		// Already subscribed. Nothing to ingest.
		return false, nil
	}

	if _, err := s.queue.Enqueue(ctx, domain.NewIngestNewFeedJob(feed.ID, userID)); err != nil {
		return false, err
	}
	return true, nil
}

// Package service implements the feed synchronization pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feed-hub/domain"
	"feed-hub/repository"
)

// FeedFetcher retrieves and parses one remote feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (*domain.FeedMetadata, []domain.Entry, error)
}

// Notifier pushes a notification to a user's live connections.
type Notifier interface {
	Send(ctx context.Context, userID int64, n domain.Notification)
}

// Enqueuer appends a job to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job domain.Job) (string, error)
}

// IngestResult summarizes one ingestion run of a single feed.
type IngestResult struct {
	Feed        *domain.Feed
	NewArticles []*domain.Article
	FannedOut   int64
}

// SyncService runs the fetch, dedup, fan-out and notification pipeline.
type SyncService struct {
	feeds        repository.FeedRepository
	articles     repository.ArticleRepository
	subs         repository.SubscriptionRepository
	interactions repository.InteractionRepository
	fetcher      FeedFetcher
	notifier     Notifier
	queue        Enqueuer
	logger       *slog.Logger
}

// NewSyncService wires the pipeline dependencies.
func NewSyncService(
	feeds repository.FeedRepository,
	articles repository.ArticleRepository,
	subs repository.SubscriptionRepository,
	interactions repository.InteractionRepository,
	fetcher FeedFetcher,
	notifier Notifier,
	queue Enqueuer,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		feeds:        feeds,
		articles:     articles,
		subs:         subs,
		interactions: interactions,
		fetcher:      fetcher,
		notifier:     notifier,
		queue:        queue,
		logger:       logger,
	}
}

// IngestFeed runs one full synchronization of a feed: fetch, parse, dedup,
// persist, fan out to subscribers and notify them according to the mode.
// The initiator is the user who triggered an initial subscription run; it is
// ignored for scheduled refreshes.
func (s *SyncService) IngestFeed(ctx context.Context, feedID int64, mode domain.IngestMode, initiator int64) (*IngestResult, error) {
	feed, err := s.feeds.GetByID(ctx, feedID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	meta, entries, err := s.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %d: %w", feedID, err)
	}

	if mode == domain.ModeInitialSubscription {
		if err := s.feeds.UpdateMetadata(ctx, feed.ID, *meta); err != nil {
			return nil, fmt.Errorf("update feed metadata: %w", err)
		}
		feed.Title = meta.Title
		feed.Description = meta.Description
		feed.SiteURL = meta.SiteURL
		feed.ImageURL = meta.ImageURL
	}

	inserted, err := s.persistNewEntries(ctx, feed, entries)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Feed: feed, NewArticles: inserted}

	if len(inserted) > 0 {
		fanned, subscribers, err := s.fanOut(ctx, feed.ID, inserted)
		if err != nil {
			return nil, err
		}
		result.FannedOut = fanned

		if mode == domain.ModeScheduledRefresh {
			n := domain.NewNewArticles(feed.ID, feed.DisplayTitle(), len(inserted))
			for _, userID := range subscribers {
				s.notifier.Send(ctx, userID, n)
			}
		}
	}

	if mode == domain.ModeInitialSubscription {
		s.notifier.Send(ctx, initiator, domain.NewFeedProcessed(feed.ID, feed.DisplayTitle(), len(inserted)))
	}

	if err := s.feeds.TouchLastFetched(ctx, feed.ID); err != nil {
		return nil, fmt.Errorf("touch last fetched: %w", err)
	}

	s.logger.InfoContext(ctx, "feed ingested",
		"feed_id", feed.ID,
		"mode", mode,
		"entries", len(entries),
		"new_articles", len(inserted),
		"fanned_out", result.FannedOut,
		"elapsed", time.Since(start),
	)
	return result, nil
}

// persistNewEntries filters entries down to addressable, not-yet-persisted
// ones and bulk-inserts them.
func (s *SyncService) persistNewEntries(ctx context.Context, feed *domain.Feed, entries []domain.Entry) ([]*domain.Article, error) {
	keys := make([]string, 0, len(entries))
	addressable := make([]domain.Entry, 0, len(entries))
	for _, entry := range entries {
		key := entry.Key()
		if key == "" {
			s.logger.WarnContext(ctx, "skipping unaddressable entry",
				"feed_id", feed.ID, "title", entry.Title)
			continue
		}
		keys = append(keys, key)
		addressable = append(addressable, entry)
	}
	if len(addressable) == 0 {
		return nil, nil
	}

	existing, err := s.articles.ExistingGUIDs(ctx, feed.ID, keys)
	if err != nil {
		return nil, fmt.Errorf("look up existing articles: %w", err)
	}

	candidates := make([]*domain.Article, 0, len(addressable))
	seen := make(map[string]bool, len(addressable))
	for _, entry := range addressable {
		key := entry.Key()
		// A document may repeat a guid; only the first occurrence counts.
		if existing[key] || seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, articleFromEntry(feed.ID, entry))
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	inserted, err := s.articles.InsertNew(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("insert articles: %w", err)
	}
	return inserted, nil
}

// fanOut creates unread interactions for every (subscriber x new article)
// pair and returns the subscriber snapshot used.
func (s *SyncService) fanOut(ctx context.Context, feedID int64, inserted []*domain.Article) (int64, []int64, error) {
	subscribers, err := s.subs.SubscriberIDs(ctx, feedID)
	if err != nil {
		return 0, nil, fmt.Errorf("list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		return 0, nil, nil
	}

	articleIDs := make([]int64, len(inserted))
	for i, a := range inserted {
		articleIDs[i] = a.ID
	}

	fanned, err := s.interactions.InsertUnread(ctx, subscribers, articleIDs)
	if err != nil {
		return 0, nil, fmt.Errorf("fan out unread state: %w", err)
	}
	return fanned, subscribers, nil
}

// RefreshAll sweeps every known feed with scheduled-refresh semantics. A
// failing feed is logged and skipped; the sweep always visits the full set.
func (s *SyncService) RefreshAll(ctx context.Context) error {
	feeds, err := s.feeds.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	var failed int
	for _, feed := range feeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.IngestFeed(ctx, feed.ID, domain.ModeScheduledRefresh, 0); err != nil {
			failed++
			s.logger.ErrorContext(ctx, "feed refresh failed",
				"feed_id", feed.ID, "url", feed.URL, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "refresh sweep finished",
		"feeds", len(feeds), "failed", failed)
	return nil
}

// RefreshAllForUser enqueues one refresh job per subscription of the user.
// The work itself runs on the queue, feed by feed.
func (s *SyncService) RefreshAllForUser(ctx context.Context, userID int64) (int, error) {
	feedIDs, err := s.subs.FeedIDsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list user subscriptions: %w", err)
	}

	var enqueued int
	for _, feedID := range feedIDs {
		if _, err := s.queue.Enqueue(ctx, domain.NewRefreshFeedJob(feedID)); err != nil {
			return enqueued, fmt.Errorf("enqueue refresh for feed %d: %w", feedID, err)
		}
		enqueued++
	}

	s.logger.InfoContext(ctx, "per-user refresh fanned out",
		"user_id", userID, "jobs", enqueued)
	return enqueued, nil
}

// IsFeedGone reports whether the error means the feed vanished between
// enqueue and execution.
func IsFeedGone(err error) bool {
	return errors.Is(err, domain.ErrFeedNotFound)
}

func articleFromEntry(feedID int64, entry domain.Entry) *domain.Article {
	a := &domain.Article{
		FeedID:   feedID,
		GUID:     entry.Key(),
		Title:    entry.Title,
		URL:      entry.Link,
		Author:   entry.Author,
		Summary:  entry.Summary,
		Body:     entry.Body,
		ImageURL: entry.ImageURL,
	}
	if entry.PublishedAt != nil {
		a.PublishedAt = *entry.PublishedAt
	} else {
		// Undated entries sort by discovery time.
		a.PublishedAt = time.Now().UTC()
	}
	return a
}

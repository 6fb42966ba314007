package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-hub/domain"
)

func newImportFixture() (*fakeFeedRepo, *fakeSubRepo, *fakeEnqueuer, *ImportService) {
	feeds := newFakeFeedRepo()
	subs := &fakeSubRepo{
		subscribers: make(map[int64][]int64),
		userFeeds:   make(map[int64][]int64),
		existing:    make(map[[2]int64]bool),
	}
	queue := &fakeEnqueuer{}
	svc := NewImportService(feeds, subs, queue, discardLogger())
	return feeds, subs, queue, svc
}

func TestImport_MixOfNewAndAlreadySubscribed(t *testing.T) {
	feeds, subs, queue, svc := newImportFixture()

	// Two of the five URLs are feeds the user already subscribes to.
	existingA, _, err := feeds.GetOrCreateByURL(context.Background(), "https://a.example/rss")
	require.NoError(t, err)
	existingB, _, err := feeds.GetOrCreateByURL(context.Background(), "https://b.example/rss")
	require.NoError(t, err)
	subs.existing[[2]int64{50, existingA.ID}] = true
	subs.existing[[2]int64{50, existingB.ID}] = true

	entries := []domain.ImportEntry{
		{URL: "https://a.example/rss"},
		{URL: "https://b.example/rss"},
		{URL: "https://c.example/rss", Category: "tech"},
		{URL: "https://d.example/rss"},
		{URL: "https://e.example/rss"},
	}

	result, err := svc.Import(context.Background(), 50, entries)
	require.NoError(t, err)

	// Already-subscribed counts as success; only new subscriptions spawn jobs.
	assert.Equal(t, 5, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Enqueued)

	require.Len(t, queue.jobs, 3)
	for _, job := range queue.jobs {
		assert.Equal(t, domain.JobIngestNewFeed, job.Kind)
		assert.Equal(t, int64(50), job.UserID)
		assert.NotZero(t, job.FeedID)
	}
}

func TestImport_NewFeedGetsPlaceholderAndCategory(t *testing.T) {
	feeds, subs, _, svc := newImportFixture()

	entries := []domain.ImportEntry{
		{URL: "https://tech.example/rss", TitleOverride: "My Tech", Category: "tech"},
	}
	result, err := svc.Import(context.Background(), 7, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	feed := feeds.byURL["https://tech.example/rss"]
	require.NotNil(t, feed)
	assert.Equal(t, domain.PlaceholderTitle, feed.Title)

	require.Len(t, subs.created, 1)
	assert.Equal(t, "My Tech", subs.created[0].TitleOverride)
	assert.Equal(t, domain.CategoryTech, subs.created[0].Category)
}

func TestImport_FailingEntryDoesNotAbortTheRest(t *testing.T) {
	feeds, _, queue, svc := newImportFixture()

	entries := []domain.ImportEntry{
		{URL: ""},
		{URL: "https://ok.example/rss"},
	}
	result, err := svc.Import(context.Background(), 7, entries)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, queue.jobs, 1)
	assert.NotNil(t, feeds.byURL["https://ok.example/rss"])
}

func TestImport_UnknownCategoryFallsBack(t *testing.T) {
	_, subs, _, svc := newImportFixture()

	entries := []domain.ImportEntry{
		{URL: "https://x.example/rss", Category: "does-not-exist"},
	}
	_, err := svc.Import(context.Background(), 7, entries)
	require.NoError(t, err)

	require.Len(t, subs.created, 1)
	assert.Equal(t, domain.CategoryOther, subs.created[0].Category)
}

func TestImport_EmptyList(t *testing.T) {
	_, _, queue, svc := newImportFixture()

	result, err := svc.Import(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Zero(t, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Empty(t, queue.jobs)
}

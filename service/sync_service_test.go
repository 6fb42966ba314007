package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-hub/domain"
)

type fakeFeedRepo struct {
	feeds        map[int64]*domain.Feed
	byURL        map[string]*domain.Feed
	nextID       int64
	metadata     map[int64]domain.FeedMetadata
	touched      []int64
	createErr    error
	listErr      error
	touchedErr   error
	updateCalled int
}

func newFakeFeedRepo(feeds ...*domain.Feed) *fakeFeedRepo {
	r := &fakeFeedRepo{
		feeds:    make(map[int64]*domain.Feed),
		byURL:    make(map[string]*domain.Feed),
		metadata: make(map[int64]domain.FeedMetadata),
		nextID:   100,
	}
	for _, f := range feeds {
		r.feeds[f.ID] = f
		r.byURL[f.URL] = f
	}
	return r
}

func (r *fakeFeedRepo) GetByID(_ context.Context, id int64) (*domain.Feed, error) {
	f, ok := r.feeds[id]
	if !ok {
		return nil, domain.ErrFeedNotFound
	}
	copied := *f
	return &copied, nil
}

func (r *fakeFeedRepo) GetOrCreateByURL(_ context.Context, url string) (*domain.Feed, bool, error) {
	if r.createErr != nil {
		return nil, false, r.createErr
	}
	if f, ok := r.byURL[url]; ok {
		return f, false, nil
	}
	r.nextID++
	f := &domain.Feed{ID: r.nextID, URL: url, Title: domain.PlaceholderTitle}
	r.feeds[f.ID] = f
	r.byURL[url] = f
	return f, true, nil
}

func (r *fakeFeedRepo) ListAll(_ context.Context) ([]*domain.Feed, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.Feed
	for _, f := range r.feeds {
		out = append(out, f)
	}
	return out, nil
}

func (r *fakeFeedRepo) UpdateMetadata(_ context.Context, id int64, meta domain.FeedMetadata) error {
	r.updateCalled++
	r.metadata[id] = meta
	return nil
}

func (r *fakeFeedRepo) TouchLastFetched(_ context.Context, id int64) error {
	if r.touchedErr != nil {
		return r.touchedErr
	}
	r.touched = append(r.touched, id)
	return nil
}

type fakeArticleRepo struct {
	existing  map[string]bool
	inserted  [][]*domain.Article
	nextID    int64
	insertErr error
}

func (r *fakeArticleRepo) ExistingGUIDs(_ context.Context, _ int64, guids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, g := range guids {
		if r.existing[g] {
			out[g] = true
		}
	}
	return out, nil
}

func (r *fakeArticleRepo) InsertNew(_ context.Context, articles []*domain.Article) ([]*domain.Article, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	for _, a := range articles {
		r.nextID++
		a.ID = r.nextID
	}
	r.inserted = append(r.inserted, articles)
	return articles, nil
}

type fakeSubRepo struct {
	subscribers map[int64][]int64
	userFeeds   map[int64][]int64
	existing    map[[2]int64]bool
	created     []*domain.Subscription
	createErr   error
}

func (r *fakeSubRepo) SubscriberIDs(_ context.Context, feedID int64) ([]int64, error) {
	return r.subscribers[feedID], nil
}

func (r *fakeSubRepo) FeedIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	return r.userFeeds[userID], nil
}

func (r *fakeSubRepo) Create(_ context.Context, sub *domain.Subscription) (bool, error) {
	if r.createErr != nil {
		return false, r.createErr
	}
	key := [2]int64{sub.UserID, sub.FeedID}
	if r.existing[key] {
		return false, nil
	}
	if r.existing == nil {
		r.existing = make(map[[2]int64]bool)
	}
	r.existing[key] = true
	r.created = append(r.created, sub)
	return true, nil
}

type fakeInteractionRepo struct {
	calls []struct {
		users    []int64
		articles []int64
	}
}

func (r *fakeInteractionRepo) InsertUnread(_ context.Context, userIDs, articleIDs []int64) (int64, error) {
	r.calls = append(r.calls, struct {
		users    []int64
		articles []int64
	}{userIDs, articleIDs})
	return int64(len(userIDs) * len(articleIDs)), nil
}

type fakeFetcher struct {
	meta    *domain.FeedMetadata
	entries []domain.Entry
	err     error
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*domain.FeedMetadata, []domain.Entry, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.meta, f.entries, nil
}

type sentNotification struct {
	userID int64
	n      domain.Notification
}

type fakeNotifier struct {
	sent []sentNotification
}

func (f *fakeNotifier) Send(_ context.Context, userID int64, n domain.Notification) {
	f.sent = append(f.sent, sentNotification{userID, n})
}

func (f *fakeNotifier) ofType(t domain.NotificationType) []sentNotification {
	var out []sentNotification
	for _, s := range f.sent {
		if s.n.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type fakeEnqueuer struct {
	jobs []domain.Job
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job domain.Job) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "1-0", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type syncFixture struct {
	feeds        *fakeFeedRepo
	articles     *fakeArticleRepo
	subs         *fakeSubRepo
	interactions *fakeInteractionRepo
	fetcher      *fakeFetcher
	notifier     *fakeNotifier
	queue        *fakeEnqueuer
	svc          *SyncService
}

func newSyncFixture(feed *domain.Feed, entries []domain.Entry) *syncFixture {
	f := &syncFixture{
		feeds:    newFakeFeedRepo(feed),
		articles: &fakeArticleRepo{existing: make(map[string]bool)},
		subs: &fakeSubRepo{
			subscribers: make(map[int64][]int64),
			userFeeds:   make(map[int64][]int64),
		},
		interactions: &fakeInteractionRepo{},
		fetcher: &fakeFetcher{
			meta:    &domain.FeedMetadata{Title: "Tech Weekly", SiteURL: "https://example.com"},
			entries: entries,
		},
		notifier: &fakeNotifier{},
		queue:    &fakeEnqueuer{},
	}
	f.svc = NewSyncService(f.feeds, f.articles, f.subs, f.interactions,
		f.fetcher, f.notifier, f.queue, discardLogger())
	return f
}

func publishedAt(t time.Time) *time.Time { return &t }

func testFeed() *domain.Feed {
	return &domain.Feed{ID: 1, URL: "https://example.com/rss", Title: domain.PlaceholderTitle}
}

func TestIngestFeed_InitialSubscription(t *testing.T) {
	entries := []domain.Entry{
		{GUID: "a-1", Title: "First", Link: "https://example.com/1", PublishedAt: publishedAt(time.Now())},
		{GUID: "a-2", Title: "Second", Link: "https://example.com/2"},
	}
	fx := newSyncFixture(testFeed(), entries)
	fx.subs.subscribers[1] = []int64{10}

	result, err := fx.svc.IngestFeed(context.Background(), 1, domain.ModeInitialSubscription, 10)
	require.NoError(t, err)

	assert.Len(t, result.NewArticles, 2)
	assert.Equal(t, int64(2), result.FannedOut)

	// Metadata lands on the stored feed and the placeholder is replaced.
	assert.Equal(t, 1, fx.feeds.updateCalled)
	assert.Equal(t, "Tech Weekly", fx.feeds.metadata[1].Title)

	// One summary to the initiator, no per-article notifications.
	processed := fx.notifier.ofType(domain.NotificationFeedProcessed)
	require.Len(t, processed, 1)
	assert.Equal(t, int64(10), processed[0].userID)
	assert.Equal(t, int64(1), processed[0].n.FeedID)
	assert.Empty(t, fx.notifier.ofType(domain.NotificationNewArticles))

	assert.Equal(t, []int64{1}, fx.feeds.touched)
}

func TestIngestFeed_InitialSubscriptionNotifiesEvenWithoutArticles(t *testing.T) {
	fx := newSyncFixture(testFeed(), nil)

	_, err := fx.svc.IngestFeed(context.Background(), 1, domain.ModeInitialSubscription, 10)
	require.NoError(t, err)

	processed := fx.notifier.ofType(domain.NotificationFeedProcessed)
	require.Len(t, processed, 1)
	assert.Zero(t, processed[0].n.Count)
}

func TestIngestFeed_ScheduledRefreshNotifiesSubscribers(t *testing.T) {
	entries := []domain.Entry{
		{GUID: "a-1", Title: "Fresh", Link: "https://example.com/1"},
	}
	feed := testFeed()
	feed.Title = "Tech Weekly"
	fx := newSyncFixture(feed, entries)
	fx.subs.subscribers[1] = []int64{10, 20, 30}

	result, err := fx.svc.IngestFeed(context.Background(), 1, domain.ModeScheduledRefresh, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.FannedOut)

	// Metadata is only refreshed on the initial run.
	assert.Zero(t, fx.feeds.updateCalled)

	notified := fx.notifier.ofType(domain.NotificationNewArticles)
	require.Len(t, notified, 3)
	users := []int64{notified[0].userID, notified[1].userID, notified[2].userID}
	assert.ElementsMatch(t, []int64{10, 20, 30}, users)
	assert.Equal(t, 1, notified[0].n.Count)
	assert.Empty(t, fx.notifier.ofType(domain.NotificationFeedProcessed))
}

func TestIngestFeed_NoNewArticlesIsQuiet(t *testing.T) {
	entries := []domain.Entry{
		{GUID: "seen", Title: "Old", Link: "https://example.com/old"},
	}
	fx := newSyncFixture(testFeed(), entries)
	fx.articles.existing["seen"] = true
	fx.subs.subscribers[1] = []int64{10}

	result, err := fx.svc.IngestFeed(context.Background(), 1, domain.ModeScheduledRefresh, 0)
	require.NoError(t, err)

	assert.Empty(t, result.NewArticles)
	assert.Empty(t, fx.notifier.sent)
	assert.Empty(t, fx.interactions.calls)
	// A quiet run still counts as a successful fetch.
	assert.Equal(t, []int64{1}, fx.feeds.touched)
}

func TestIngestFeed_DedupByLinkWhenGUIDMissing(t *testing.T) {
	entries := []domain.Entry{
		{Title: "No guid", Link: "https://example.com/linked"},
		{Title: "Unaddressable"},
		{GUID: "dup", Title: "Once", Link: "https://example.com/a"},
		{GUID: "dup", Title: "Twice", Link: "https://example.com/b"},
	}
	fx := newSyncFixture(testFeed(), entries)

	result, err := fx.svc.IngestFeed(context.Background(), 1, domain.ModeScheduledRefresh, 0)
	require.NoError(t, err)

	// The unaddressable entry is skipped, the repeated guid kept once.
	require.Len(t, result.NewArticles, 2)
	assert.Equal(t, "https://example.com/linked", result.NewArticles[0].GUID)
	assert.Equal(t, "dup", result.NewArticles[1].GUID)
	assert.Equal(t, "Once", result.NewArticles[1].Title)
}

func TestIngestFeed_FanOutPairsSubscribersWithNewArticles(t *testing.T) {
	entries := []domain.Entry{
		{GUID: "a-1", Link: "https://example.com/1"},
		{GUID: "a-2", Link: "https://example.com/2"},
	}
	fx := newSyncFixture(testFeed(), entries)
	fx.subs.subscribers[1] = []int64{10, 20, 30}

	_, err := fx.svc.IngestFeed(context.Background(), 1, domain.ModeScheduledRefresh, 0)
	require.NoError(t, err)

	require.Len(t, fx.interactions.calls, 1)
	assert.Equal(t, []int64{10, 20, 30}, fx.interactions.calls[0].users)
	assert.Len(t, fx.interactions.calls[0].articles, 2)
}

func TestIngestFeed_FeedGone(t *testing.T) {
	fx := newSyncFixture(testFeed(), nil)

	_, err := fx.svc.IngestFeed(context.Background(), 999, domain.ModeScheduledRefresh, 0)
	require.Error(t, err)
	assert.True(t, IsFeedGone(err))
	assert.Empty(t, fx.fetcher.calls)
}

func TestIngestFeed_FetchFailureLeavesFeedUntouched(t *testing.T) {
	fx := newSyncFixture(testFeed(), nil)
	fx.fetcher.err = &domain.FetchError{URL: "https://example.com/rss", StatusCode: 503}

	_, err := fx.svc.IngestFeed(context.Background(), 1, domain.ModeScheduledRefresh, 0)
	require.Error(t, err)

	var fetchErr *domain.FetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, fx.feeds.touched)
	assert.Empty(t, fx.notifier.sent)
}

func TestRefreshAll_IsolatesPerFeedFailures(t *testing.T) {
	good := &domain.Feed{ID: 1, URL: "https://good.example/rss", Title: "Good"}
	bad := &domain.Feed{ID: 2, URL: "https://bad.example/rss", Title: "Bad"}
	fx := newSyncFixture(good, nil)
	fx.feeds.feeds[bad.ID] = bad
	fx.feeds.byURL[bad.URL] = bad

	fx.fetcher.meta = &domain.FeedMetadata{Title: "Good"}
	failing := &selectiveFetcher{failURL: bad.URL, inner: fx.fetcher}
	fx.svc = NewSyncService(fx.feeds, fx.articles, fx.subs, fx.interactions,
		failing, fx.notifier, fx.queue, discardLogger())

	err := fx.svc.RefreshAll(context.Background())
	require.NoError(t, err)

	// Both feeds were attempted, only the healthy one was touched.
	assert.Len(t, failing.calls, 2)
	assert.Equal(t, []int64{1}, fx.feeds.touched)
}

type selectiveFetcher struct {
	failURL string
	inner   *fakeFetcher
	calls   []string
}

func (s *selectiveFetcher) Fetch(ctx context.Context, url string) (*domain.FeedMetadata, []domain.Entry, error) {
	s.calls = append(s.calls, url)
	if url == s.failURL {
		return nil, nil, errors.New("connection refused")
	}
	return s.inner.Fetch(ctx, url)
}

func TestRefreshAllForUser_EnqueuesOneJobPerSubscription(t *testing.T) {
	fx := newSyncFixture(testFeed(), nil)
	fx.subs.userFeeds[10] = []int64{1, 2, 3}

	enqueued, err := fx.svc.RefreshAllForUser(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, enqueued)

	require.Len(t, fx.queue.jobs, 3)
	var feedIDs []int64
	for _, job := range fx.queue.jobs {
		assert.Equal(t, domain.JobRefreshFeed, job.Kind)
		feedIDs = append(feedIDs, job.FeedID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, feedIDs)
}

func TestRefreshAllForUser_NoSubscriptions(t *testing.T) {
	fx := newSyncFixture(testFeed(), nil)

	enqueued, err := fx.svc.RefreshAllForUser(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, enqueued)
	assert.Empty(t, fx.queue.jobs)
}

package domain

import "time"

// Entry is one item of a parsed feed document, before persistence.
type Entry struct {
	// GUID is the entry's native identifier. May be empty; Key resolves
	// the dedup key.
	GUID        string
	Title       string
	Link        string
	Author      string
	Summary     string
	Body        string
	ImageURL    string
	PublishedAt *time.Time
}

// Key returns the dedup addressing key for the entry: the native id, else
// the link. An empty key means the entry cannot be addressed and must be
// skipped.
func (e *Entry) Key() string {
	if e.GUID != "" {
		return e.GUID
	}
	return e.Link
}

// Article is the persisted, deduplicated record of one Entry. A GUID is
// unique within its feed; articles are never rewritten on re-ingestion.
// Body may be backfilled later by the content-extraction service.
type Article struct {
	ID          int64
	FeedID      int64
	GUID        string
	Title       string
	URL         string
	Author      string
	Summary     string
	Body        string
	ImageURL    string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subscription is a user's standing relationship to a feed, unique per
// (user, feed). Its lifecycle is owned by the CRUD layer; the pipeline reads
// subscriber snapshots and creates subscriptions during bulk import.
type Subscription struct {
	ID            int64
	UserID        int64
	FeedID        int64
	TitleOverride string
	Category      FeedCategory
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Interaction is a user's per-article read state, unique per
// (user, article). Fan-out creates it in the default unread state.
type Interaction struct {
	ID           int64
	UserID       int64
	ArticleID    int64
	IsRead       bool
	IsFavorite   bool
	ReadLater    bool
	ReadPosition int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

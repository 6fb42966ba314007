package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies what kind of ingestion work a job carries.
type JobKind string

const (
	// JobIngestNewFeed performs metadata refresh plus initial ingestion of a
	// feed a user just subscribed to. Fan-out notifications are suppressed;
	// the user receives a single feed_processed summary.
	JobIngestNewFeed JobKind = "ingest_new_feed"
	// JobRefreshFeed re-ingests one feed with per-subscriber notifications.
	JobRefreshFeed JobKind = "refresh_feed"
	// JobRefreshAllForUser enqueues one refresh_feed job per subscription of
	// the user.
	JobRefreshAllForUser JobKind = "refresh_all_for_user"
	// JobImportFeeds subscribes a user to a bulk list of feed URLs.
	JobImportFeeds JobKind = "import_feeds"
)

// JobStatus tracks a job through its state machine:
// queued -> running -> {succeeded, failed}.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// ImportEntry is one OPML-derived subscription request.
type ImportEntry struct {
	URL           string `json:"url"`
	TitleOverride string `json:"title_override,omitempty"`
	Category      string `json:"category,omitempty"`
}

// Job is one unit of orchestrated ingestion work carried on the durable
// queue. Exactly the fields required by its kind are set.
type Job struct {
	ID            string        `json:"id"`
	Kind          JobKind       `json:"kind"`
	FeedID        int64         `json:"feed_id,omitempty"`
	UserID        int64         `json:"user_id,omitempty"`
	Subscriptions []ImportEntry `json:"subscriptions,omitempty"`
	EnqueuedAt    time.Time     `json:"enqueued_at"`
}

func newJob(kind JobKind) Job {
	return Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewIngestNewFeedJob builds the job enqueued once when a user first
// subscribes to a URL not yet fully processed.
func NewIngestNewFeedJob(feedID, userID int64) Job {
	j := newJob(JobIngestNewFeed)
	j.FeedID = feedID
	j.UserID = userID
	return j
}

// NewRefreshFeedJob builds a manual or fanned-out per-feed refresh job.
func NewRefreshFeedJob(feedID int64) Job {
	j := newJob(JobRefreshFeed)
	j.FeedID = feedID
	return j
}

// NewRefreshAllForUserJob builds the job that fans work out into one
// refresh_feed job per subscription of the user.
func NewRefreshAllForUserJob(userID int64) Job {
	j := newJob(JobRefreshAllForUser)
	j.UserID = userID
	return j
}

// NewImportFeedsJob builds the bulk subscription import job.
func NewImportFeedsJob(userID int64, subs []ImportEntry) Job {
	j := newJob(JobImportFeeds)
	j.UserID = userID
	j.Subscriptions = subs
	return j
}

// Validate checks that the job carries the fields its kind requires.
func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("job id is required")
	}
	switch j.Kind {
	case JobIngestNewFeed:
		if j.FeedID == 0 || j.UserID == 0 {
			return fmt.Errorf("%s requires feed_id and user_id", j.Kind)
		}
	case JobRefreshFeed:
		if j.FeedID == 0 {
			return fmt.Errorf("%s requires feed_id", j.Kind)
		}
	case JobRefreshAllForUser:
		if j.UserID == 0 {
			return fmt.Errorf("%s requires user_id", j.Kind)
		}
	case JobImportFeeds:
		if j.UserID == 0 {
			return fmt.Errorf("%s requires user_id", j.Kind)
		}
		if len(j.Subscriptions) == 0 {
			return fmt.Errorf("%s requires a non-empty subscription list", j.Kind)
		}
	default:
		return fmt.Errorf("unknown job kind: %q", j.Kind)
	}
	return nil
}

// IngestMode states which caller triggered an ingestion run. The mode, never
// feed state or call order, decides whether per-article notifications are
// suppressed.
type IngestMode string

const (
	// ModeInitialSubscription suppresses per-article notifications; the
	// subscriber gets one feed_processed summary instead.
	ModeInitialSubscription IngestMode = "initial_subscription"
	// ModeScheduledRefresh notifies every current subscriber of new articles.
	ModeScheduledRefresh IngestMode = "scheduled_refresh"
)

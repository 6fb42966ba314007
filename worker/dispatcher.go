// Package worker dispatches dequeued jobs to the synchronization services.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feed-hub/domain"
	"feed-hub/service"
)

// SyncRunner is the slice of SyncService the dispatcher drives.
type SyncRunner interface {
	IngestFeed(ctx context.Context, feedID int64, mode domain.IngestMode, initiator int64) (*service.IngestResult, error)
	RefreshAllForUser(ctx context.Context, userID int64) (int, error)
}

// Importer runs bulk subscription imports.
type Importer interface {
	Import(ctx context.Context, userID int64, entries []domain.ImportEntry) (*service.ImportResult, error)
}

// Dispatcher routes jobs by kind. It is the queue's handler; a returned
// error is terminal and has already been reported to the initiating user
// when one is known.
type Dispatcher struct {
	sync     SyncRunner
	importer Importer
	notifier service.Notifier
	logger   *slog.Logger
}

// NewDispatcher wires the job dispatcher.
func NewDispatcher(sync SyncRunner, importer Importer, notifier service.Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sync: sync, importer: importer, notifier: notifier, logger: logger}
}

// HandleJob runs one job through its state machine. A feed that vanished
// between enqueue and execution makes the job a successful no-op.
func (d *Dispatcher) HandleJob(ctx context.Context, job domain.Job) error {
	start := time.Now()
	d.logger.InfoContext(ctx, "job state change",
		"job_id", job.ID, "job_kind", job.Kind,
		"from", domain.JobStatusQueued, "to", domain.JobStatusRunning)

	err := d.run(ctx, job)

	if err != nil {
		d.logger.ErrorContext(ctx, "job state change",
			"job_id", job.ID, "job_kind", job.Kind,
			"from", domain.JobStatusRunning, "to", domain.JobStatusFailed,
			"elapsed", time.Since(start), "error", err)
		d.reportFailure(ctx, job)
		return err
	}

	d.logger.InfoContext(ctx, "job state change",
		"job_id", job.ID, "job_kind", job.Kind,
		"from", domain.JobStatusRunning, "to", domain.JobStatusSucceeded,
		"elapsed", time.Since(start))
	return nil
}

func (d *Dispatcher) run(ctx context.Context, job domain.Job) error {
	switch job.Kind {
	case domain.JobIngestNewFeed:
		_, err := d.sync.IngestFeed(ctx, job.FeedID, domain.ModeInitialSubscription, job.UserID)
		return d.ignoreGoneFeed(ctx, job, err)

	case domain.JobRefreshFeed:
		_, err := d.sync.IngestFeed(ctx, job.FeedID, domain.ModeScheduledRefresh, 0)
		return d.ignoreGoneFeed(ctx, job, err)

	case domain.JobRefreshAllForUser:
		_, err := d.sync.RefreshAllForUser(ctx, job.UserID)
		return err

	case domain.JobImportFeeds:
		result, err := d.importer.Import(ctx, job.UserID, job.Subscriptions)
		if err != nil {
			return err
		}
		d.notifier.Send(ctx, job.UserID, domain.NewImportCompleted(result.Succeeded, result.Failed))
		return nil

	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// ignoreGoneFeed downgrades a vanished feed to a logged no-op.
func (d *Dispatcher) ignoreGoneFeed(ctx context.Context, job domain.Job, err error) error {
	if err == nil {
		return nil
	}
	if service.IsFeedGone(err) {
		d.logger.WarnContext(ctx, "feed gone before job ran, skipping",
			"job_id", job.ID, "job_kind", job.Kind, "feed_id", job.FeedID)
		return nil
	}
	return err
}

// reportFailure tells the initiating user their job died. Jobs without an
// initiating user fail silently toward clients; the log carries the detail.
func (d *Dispatcher) reportFailure(ctx context.Context, job domain.Job) {
	if job.UserID == 0 {
		return
	}
	var msg string
	switch job.Kind {
	case domain.JobIngestNewFeed:
		msg = "failed to process feed subscription"
	case domain.JobImportFeeds:
		msg = "feed import failed"
	default:
		msg = "background job failed"
	}
	d.notifier.Send(ctx, job.UserID, domain.NewErrorNotification(msg))
}

// Package reconcile promotes scheduled videos to published once the platform
// reports them public, and hands their records to the downstream dispatchers.
//
// A pass reads every due item from scheduled-for-update and
// updated-on-platform, asks the platform for all their statuses at once, and
// then handles each public item on its own. If the status query fails the
// pass stops before touching any queue; a failure on one item is logged and
// the pass moves on.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"confops/internal/logging"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/services"
	"confops/internal/services/youtube"
)

// StatusLister reports the visibility of many videos in one call.
type StatusLister interface {
	VideoStatuses(ctx context.Context, ids []string) ([]youtube.VideoStatus, error)
}

// Dispatcher queues the follow-up post and mail for a released session.
type Dispatcher interface {
	PreparePost(ctx context.Context, rec *records.SessionRecord) error
	PrepareMail(ctx context.Context, rec *records.SessionRecord) error
}

// Result summarizes one pass.
type Result struct {
	Due       int
	Published int
	Pending   int
	Failed    int
	Codes     []string
}

// Reconciler runs reconciliation passes.
type Reconciler struct {
	queues     queue.Store
	records    *records.Store
	lister     StatusLister
	dispatcher Dispatcher
	now        func() time.Time
	logger     *slog.Logger
}

// Option customizes the Reconciler.
type Option func(*Reconciler)

// WithClock injects the pass time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Reconciler.
func New(store queue.Store, recs *records.Store, lister StatusLister, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		queues:     store,
		records:    recs,
		lister:     lister,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logging.NewComponentLogger(logger, "reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type dueItem struct {
	code  string
	queue queue.Name
	video records.VideoResource
}

// scanQueues are the queues a pass reads; published is never rescanned.
var scanQueues = []queue.Name{queue.ScheduledUpdate, queue.UpdatedOnPlatform}

// Run performs one pass.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, "reconcile")
	now := r.now()
	var result Result

	due, err := r.collectDue(ctx, now, &result)
	if err != nil {
		return result, err
	}
	result.Due = len(due)
	if len(due) == 0 {
		r.logger.Info("no scheduled videos due", logging.String("now", now.UTC().Format(time.RFC3339)))
		return result, nil
	}

	ids := make([]string, 0, len(due))
	for _, item := range due {
		ids = append(ids, item.video.ID)
	}
	statuses, err := r.lister.VideoStatuses(ctx, ids)
	if err != nil {
		logging.ErrorWithContext(r.logger, "status query failed, pass aborted", "reconcile_query_failed",
			logging.Int("due", len(due)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "queues are unchanged; rerun once the platform is reachable"),
		)
		return result, services.Wrap(services.ErrExternalTool, "reconcile", "status query", "", err)
	}
	privacy := make(map[string]string, len(statuses))
	for _, st := range statuses {
		privacy[st.ID] = st.PrivacyStatus
	}

	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if privacy[item.video.ID] != records.PrivacyPublic {
			result.Pending++
			r.logger.Debug("video not public yet",
				logging.String(logging.FieldSessionCode, item.code),
				logging.String("privacy", privacy[item.video.ID]),
			)
			continue
		}
		if err := r.release(ctx, item); err != nil {
			result.Failed++
			logging.WarnWithContext(r.logger, "release failed", "reconcile_item_failed",
				logging.String(logging.FieldSessionCode, item.code),
				logging.String(logging.FieldQueue, item.queue.String()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item stays in its queue and is retried next pass"),
			)
			continue
		}
		result.Published++
		result.Codes = append(result.Codes, item.code)
	}

	r.logger.Info("reconciliation pass complete",
		logging.Int("due", result.Due),
		logging.Int("published", result.Published),
		logging.Int("pending", result.Pending),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (r *Reconciler) collectDue(ctx context.Context, now time.Time, result *Result) ([]dueItem, error) {
	var due []dueItem
	for _, name := range scanQueues {
		keys, err := r.queues.List(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			video, err := queue.ReadJSON[records.VideoResource](ctx, r.queues, name, key)
			if err != nil {
				if errors.Is(err, queue.ErrNotFound) {
					continue
				}
				result.Failed++
				logging.WarnWithContext(r.logger, "unreadable video resource", "reconcile_bad_document",
					logging.String(logging.FieldSessionCode, key),
					logging.String(logging.FieldQueue, name.String()),
					logging.Error(err),
					logging.String(logging.FieldImpact, "item skipped"),
				)
				continue
			}
			if video.ID == "" || !video.DueBy(now) {
				continue
			}
			due = append(due, dueItem{code: key, queue: name, video: video})
		}
	}
	return due, nil
}

func (r *Reconciler) release(ctx context.Context, item dueItem) error {
	ctx = services.WithSessionCode(ctx, item.code)
	logger := logging.WithContext(ctx, r.logger)

	item.video.Status.PrivacyStatus = records.PrivacyPublic
	if err := queue.WriteJSON(ctx, r.queues, item.queue, item.code, item.video); err != nil {
		return err
	}
	rec, err := r.records.Load(item.code)
	if err != nil {
		return err
	}
	if err := r.dispatcher.PreparePost(ctx, rec); err != nil {
		return err
	}
	if err := r.dispatcher.PrepareMail(ctx, rec); err != nil {
		return err
	}
	if err := r.queues.Move(ctx, item.code, item.queue, queue.Published); err != nil {
		return err
	}
	logger.Info("video published", logging.String("video_id", item.video.ID))
	return nil
}

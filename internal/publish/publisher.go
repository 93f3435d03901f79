// Package publish writes prepared metadata to the video platform and moves
// items through the release queues.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"confops/internal/logging"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/services"
	"confops/internal/services/youtube"
)

// ReleaseDelay is how far ahead ReleaseNow schedules the publish instant.
const ReleaseDelay = 5 * time.Second

// Updater writes video metadata to the platform.
type Updater interface {
	UpdateVideo(ctx context.Context, update youtube.VideoUpdate) (json.RawMessage, error)
}

// Dispatcher queues the follow-up post and mail for a released session.
type Dispatcher interface {
	PreparePost(ctx context.Context, rec *records.SessionRecord) error
	PrepareMail(ctx context.Context, rec *records.SessionRecord) error
}

// PushResult summarizes a PushScheduled run.
type PushResult struct {
	Pushed  int
	Skipped int
	Failed  int
}

// Publisher pushes scheduled metadata and releases videos on demand.
type Publisher struct {
	queues     queue.Store
	records    *records.Store
	updater    Updater
	dispatcher Dispatcher
	channels   map[string]string
	now        func() time.Time
	logger     *slog.Logger
}

// Option customizes the Publisher.
type Option func(*Publisher)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// New constructs a Publisher. channels maps session codes to channel names.
func New(store queue.Store, recs *records.Store, updater Updater, dispatcher Dispatcher, channels map[string]string, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		queues:     store,
		records:    recs,
		updater:    updater,
		dispatcher: dispatcher,
		channels:   channels,
		now:        time.Now,
		logger:     logging.NewComponentLogger(logger, "publish"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UpdateFor converts a queued resource into a platform update.
func UpdateFor(video records.VideoResource) youtube.VideoUpdate {
	return youtube.VideoUpdate{
		ID:                   video.ID,
		Title:                video.Snippet.Title,
		Description:          video.Snippet.Description,
		CategoryID:           video.Snippet.CategoryID,
		DefaultLanguage:      video.Snippet.DefaultLanguage,
		DefaultAudioLanguage: video.Snippet.DefaultAudioLanguage,
		Tags:                 video.Snippet.Tags,
		PrivacyStatus:        video.Status.PrivacyStatus,
		License:              video.Status.License,
		Embeddable:           video.Status.Embeddable,
		PublishAt:            video.Status.PublishAt,
		RecordingDate:        video.RecordingDetails.RecordingDate,
	}
}

// PushScheduled writes every scheduled item of channel to the platform and
// moves it to updated-on-platform. An empty channel pushes all channels.
func (p *Publisher) PushScheduled(ctx context.Context, channel string) (PushResult, error) {
	var result PushResult
	if p.updater == nil {
		return result, services.Wrap(services.ErrConfiguration, "publish", "push", "no video platform configured", nil)
	}
	keys, err := p.queues.List(ctx, queue.ScheduledUpdate)
	if err != nil {
		return result, err
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if channel != "" && p.channels[key] != channel {
			result.Skipped++
			continue
		}
		if err := p.push(ctx, key); err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				result.Skipped++
				continue
			}
			result.Failed++
			logging.WarnWithContext(p.logger, "platform update failed", "push_failed",
				logging.String(logging.FieldSessionCode, key),
				logging.Error(err),
				logging.String(logging.FieldImpact, "video stays scheduled locally"),
				logging.String(logging.FieldErrorHint, "rerun confops push; pushed items are not repeated"),
			)
			continue
		}
		result.Pushed++
	}
	p.logger.Info("scheduled metadata pushed",
		logging.String("channel", channel),
		logging.Int("pushed", result.Pushed),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (p *Publisher) push(ctx context.Context, code string) error {
	ctx = services.WithSessionCode(ctx, code)
	video, err := queue.ReadJSON[records.VideoResource](ctx, p.queues, queue.ScheduledUpdate, code)
	if err != nil {
		return err
	}
	if _, err := p.updater.UpdateVideo(ctx, UpdateFor(video)); err != nil {
		return err
	}
	if err := p.queues.Move(ctx, code, queue.ScheduledUpdate, queue.UpdatedOnPlatform); err != nil {
		return err
	}
	logging.WithContext(ctx, p.logger).Info("video updated on platform",
		logging.String("video_id", video.ID),
		logging.String("publish_at", publishAtString(video.Status.PublishAt)),
	)
	return nil
}

// ReleaseNow schedules code to go public a few seconds from now, records the
// platform response, queues the post and mail and moves the item to
// published.
func (p *Publisher) ReleaseNow(ctx context.Context, code string) error {
	if p.updater == nil {
		return services.Wrap(services.ErrConfiguration, "publish", "release", "no video platform configured", nil)
	}
	ctx = services.WithSessionCode(ctx, code)
	logger := logging.WithContext(ctx, p.logger)

	from, found, err := p.queues.Locate(ctx, code, queue.ReleaseQueues())
	if err != nil {
		return err
	}
	if !found {
		return services.Wrap(services.ErrNotFound, "publish", "release", code+" is not in any release queue; run confops prepare first", nil)
	}
	if from == queue.Published {
		return services.Wrap(services.ErrValidation, "publish", "release", code+" is already published", nil)
	}
	video, err := queue.ReadJSON[records.VideoResource](ctx, p.queues, from, code)
	if err != nil {
		return err
	}
	rec, err := p.records.Load(code)
	if err != nil {
		return err
	}

	at := p.now().UTC().Add(ReleaseDelay).Truncate(time.Second)
	video.Status.PublishAt = &at
	video.Status.PrivacyStatus = records.PrivacyPrivate
	response, err := p.updater.UpdateVideo(ctx, UpdateFor(video))
	if err != nil {
		return err
	}
	rec.PlatformMetadata = response
	if err := p.records.Save(rec); err != nil {
		return err
	}
	if err := queue.WriteJSON(ctx, p.queues, from, code, video); err != nil {
		return err
	}
	// Announcements are queued before the move so a failure leaves the item
	// where the next release or reconcile pass will find it.
	if p.dispatcher != nil {
		if err := p.dispatcher.PreparePost(ctx, rec); err != nil {
			return err
		}
		if err := p.dispatcher.PrepareMail(ctx, rec); err != nil {
			return err
		}
	}
	if err := p.queues.Move(ctx, code, from, queue.Published); err != nil {
		return err
	}
	logger.Info("video released", logging.String("video_id", video.ID), logging.String("publish_at", at.Format(time.RFC3339)))
	return nil
}

// UnpublishedTotals counts the items waiting on the platform per channel.
// Items without a channel are counted under "".
func (p *Publisher) UnpublishedTotals(ctx context.Context) (map[string]int, error) {
	keys, err := p.queues.List(ctx, queue.UpdatedOnPlatform)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int)
	for _, key := range keys {
		totals[p.channels[key]]++
	}
	return totals, nil
}

// SortedChannels returns the channel names of totals in order.
func SortedChannels(totals map[string]int) []string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func publishAtString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

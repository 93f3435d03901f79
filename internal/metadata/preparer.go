package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"confops/internal/config"
	"confops/internal/logging"
	"confops/internal/mapping"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/services"
)

// Outcome reports what Prepare did with one session.
type Outcome int

const (
	OutcomePrepared Outcome = iota
	OutcomeSkipped
)

// Result summarizes a PrepareAll run.
type Result struct {
	Prepared       int
	RecordsUpdated int
	Skipped        int
	Failed         int
}

// Preparer derives VideoResources from session records.
type Preparer struct {
	records *records.Store
	queues  queue.Store
	tables  mapping.Tables

	tmpl           *template.Template
	argsFunc       TemplateArgsFunc
	tag            string
	eventName      string
	linkBase       string
	categoryID     string
	maxDescription int

	logger *slog.Logger
}

// Option customizes the Preparer.
type Option func(*Preparer)

// WithTemplateArgs installs a strategy that adjusts template arguments per
// record.
func WithTemplateArgs(fn TemplateArgsFunc) Option {
	return func(p *Preparer) {
		p.argsFunc = fn
	}
}

// WithTemplate replaces the description template.
func WithTemplate(tmpl *template.Template) Option {
	return func(p *Preparer) {
		if tmpl != nil {
			p.tmpl = tmpl
		}
	}
}

// NewPreparer builds a Preparer from cfg and the loaded mapping tables. The
// description template comes from paths.template_file when set.
func NewPreparer(cfg *config.Config, recs *records.Store, queues queue.Store, tables mapping.Tables, logger *slog.Logger, opts ...Option) (*Preparer, error) {
	if cfg == nil || recs == nil || queues == nil {
		return nil, fmt.Errorf("metadata preparer requires config, records and queues")
	}
	p := &Preparer{
		records:        recs,
		queues:         queues,
		tables:         tables,
		tag:            cfg.Event.Tag,
		eventName:      cfg.Event.Name,
		linkBase:       cfg.Event.SessionLinkBase,
		categoryID:     cfg.YouTube.CategoryID,
		maxDescription: cfg.YouTube.MaxDescriptionLength,
		logger:         logging.NewComponentLogger(logger, "metadata"),
	}
	if p.maxDescription <= 0 {
		p.maxDescription = config.DefaultMaxDescriptionLength
	}
	if p.categoryID == "" {
		p.categoryID = records.DefaultCategoryID
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tmpl == nil {
		tmpl, err := LoadTemplate(cfg.Paths.TemplateFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "metadata", "template", "load description template", err)
		}
		p.tmpl = tmpl
	}
	return p, nil
}

// PrepareAll prepares every code. Failures are logged per item and never stop
// the batch; only context cancellation does.
func (p *Preparer) PrepareAll(ctx context.Context, codes []string) (Result, error) {
	var result Result
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, updated, err := p.prepare(ctx, code)
		if updated {
			result.RecordsUpdated++
		}
		switch {
		case err != nil:
			result.Failed++
			logging.WarnWithContext(p.logger, "prepare failed", "prepare_failed",
				logging.String(logging.FieldSessionCode, code),
				logging.Error(err),
				logging.String(logging.FieldImpact, "session skipped for this run"),
			)
		case outcome == OutcomeSkipped:
			result.Skipped++
		default:
			result.Prepared++
		}
	}
	p.logger.Info("metadata prepared",
		logging.Int("prepared", result.Prepared),
		logging.Int("records_updated", result.RecordsUpdated),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

// Prepare merges one record with the mapping tables, saves the record when a
// derived field changed, and writes its VideoResource to the prepared queue.
// Sessions without a channel or video id are skipped with a warning, as are
// sessions already scheduled or further along the release queues.
func (p *Preparer) Prepare(ctx context.Context, code string) (Outcome, error) {
	outcome, _, err := p.prepare(ctx, code)
	return outcome, err
}

func (p *Preparer) prepare(ctx context.Context, code string) (Outcome, bool, error) {
	ctx = services.WithStage(services.WithSessionCode(ctx, code), "prepare")
	logger := logging.WithContext(ctx, p.logger)

	channel, ok := p.tables.Channel(code)
	if !ok {
		logging.WarnWithContext(logger, "no channel mapped for session", "mapping_missing_channel",
			logging.String(logging.FieldErrorHint, "add the code to pretalx.video_to_track or extend track_to_channel"),
			logging.String(logging.FieldImpact, "session skipped"),
		)
		return OutcomeSkipped, false, nil
	}
	videoID, ok := p.tables.VideoID(code)
	if !ok {
		logging.WarnWithContext(logger, "no platform video id for session", "mapping_missing_video",
			logging.String(logging.FieldErrorHint, "upload the recording and rerun mapping build"),
			logging.String(logging.FieldImpact, "session skipped"),
		)
		return OutcomeSkipped, false, nil
	}

	rec, err := p.records.Load(code)
	if err != nil {
		return OutcomeSkipped, false, err
	}

	changed := p.applyDerived(rec, channel, videoID, logger)
	description, err := p.DescriptionFor(rec)
	if err != nil {
		return OutcomeSkipped, false, services.Wrap(services.ErrConfiguration, "metadata", "describe", code, err)
	}
	if rec.PlatformDescription != description {
		logger.Debug("platform description changed")
		rec.PlatformDescription = description
		changed = true
	}
	if changed {
		if err := p.records.Save(rec); err != nil {
			return OutcomeSkipped, false, err
		}
		logger.Info("session record updated")
	}

	current, found, err := p.queues.Locate(ctx, code, queue.ReleaseQueues())
	if err != nil {
		return OutcomeSkipped, changed, err
	}
	if found && current != queue.Prepared {
		logger.Info("session already past prepared, leaving queue untouched",
			logging.String(logging.FieldQueue, current.String()),
		)
		return OutcomeSkipped, changed, nil
	}

	video := p.videoResource(rec, videoID)
	if err := queue.WriteJSON(ctx, p.queues, queue.Prepared, code, video); err != nil {
		return OutcomeSkipped, changed, err
	}
	logger.Debug("video resource written", logging.String(logging.FieldQueue, queue.Prepared.String()))
	return OutcomePrepared, changed, nil
}

func (p *Preparer) applyDerived(rec *records.SessionRecord, channel, videoID string, logger *slog.Logger) bool {
	changed := false
	if rec.Channel != channel {
		logger.Debug("channel changed", logging.String("channel", channel))
		rec.Channel = channel
		changed = true
	}
	if rec.PlatformVideoID != videoID {
		logger.Debug("platform video id changed", logging.String("video_id", videoID))
		rec.PlatformVideoID = videoID
		changed = true
	}
	if title := TitleFor(rec.Title, p.tag); rec.PlatformTitle != title {
		logger.Debug("platform title changed", logging.String("title", title))
		rec.PlatformTitle = title
		changed = true
	}
	if recorded, ok := recordedDate(rec.SlotStart); ok && !rec.RecordedDate.Equal(recorded) {
		logger.Debug("recorded date changed", logging.String("recorded_date", recorded.String()))
		rec.RecordedDate = recorded
		changed = true
	}
	return changed
}

func (p *Preparer) videoResource(rec *records.SessionRecord, videoID string) records.VideoResource {
	video := records.NewVideoResource(videoID)
	video.Snippet.Title = rec.PlatformTitle
	video.Snippet.Description = rec.PlatformDescription
	video.Snippet.CategoryID = p.categoryID
	video.SetRecordingDate(rec.RecordedDate)
	return video
}

// recordedDate takes the calendar day of the slot start in the slot's own
// time zone.
func recordedDate(slotStart string) (records.Date, bool) {
	slotStart = strings.TrimSpace(slotStart)
	if slotStart == "" {
		return records.Date{}, false
	}
	t, err := time.Parse(time.RFC3339, slotStart)
	if err != nil {
		d, derr := records.ParseDate(slotStart[:min(len(slotStart), 10)])
		if derr != nil {
			return records.Date{}, false
		}
		return d, true
	}
	return records.NewDate(t), true
}

package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"confops/internal/logging"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/services"
	"confops/internal/services/email"
	"confops/internal/services/social"
)

// Mailer delivers one email message.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// SendResult summarizes a send run.
type SendResult struct {
	Attempted int
	Sent      int
	Failed    int
}

// Dispatcher owns the post and email queues.
type Dispatcher struct {
	queues        queue.Store
	records       *records.Store
	poster        social.Poster
	mailer        Mailer
	teamSignature string
	logger        *slog.Logger
}

// New constructs a Dispatcher. poster and mailer may be nil when only the
// prepare operations are used.
func New(store queue.Store, recs *records.Store, poster social.Poster, mailer Mailer, teamSignature string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queues:        store,
		records:       recs,
		poster:        poster,
		mailer:        mailer,
		teamSignature: teamSignature,
		logger:        logging.NewComponentLogger(logger, "dispatch"),
	}
}

// PreparePost queues the announcement for rec. A session whose post is
// already queued or sent is left alone.
func (d *Dispatcher) PreparePost(ctx context.Context, rec *records.SessionRecord) error {
	if held, found, err := d.queues.Locate(ctx, rec.Code, queue.Queues(queue.FamilyPost)); err != nil {
		return err
	} else if found {
		d.logger.Debug("post already exists",
			logging.String(logging.FieldSessionCode, rec.Code),
			logging.String(logging.FieldQueue, held.String()),
		)
		return nil
	}
	if rec.PlatformVideoID == "" {
		return services.Wrap(services.ErrValidation, "dispatch", "prepare post", "record has no platform video id", nil)
	}
	if err := queue.WriteJSON(ctx, d.queues, queue.ToPost, rec.Code, NewPost(rec)); err != nil {
		return err
	}
	d.logger.Info("post queued", logging.String(logging.FieldSessionCode, rec.Code))
	return nil
}

// PrepareMail queues the speaker notification for rec. Sessions without any
// speaker email are skipped with a warning.
func (d *Dispatcher) PrepareMail(ctx context.Context, rec *records.SessionRecord) error {
	if held, found, err := d.queues.Locate(ctx, rec.Code, queue.Queues(queue.FamilyEmail)); err != nil {
		return err
	} else if found {
		d.logger.Debug("mail already exists",
			logging.String(logging.FieldSessionCode, rec.Code),
			logging.String(logging.FieldQueue, held.String()),
		)
		return nil
	}
	mail := NewMail(rec, d.teamSignature)
	if len(mail.Recipients) == 0 {
		logging.WarnWithContext(d.logger, "no speaker email on record", "mail_no_recipients",
			logging.String(logging.FieldSessionCode, rec.Code),
			logging.String(logging.FieldImpact, "speakers are not notified"),
			logging.String(logging.FieldErrorHint, "rerun ingest after speakers add an email"),
		)
		return nil
	}
	if err := queue.WriteJSON(ctx, d.queues, queue.ToEmail, rec.Code, mail); err != nil {
		return err
	}
	d.logger.Info("mail queued",
		logging.String(logging.FieldSessionCode, rec.Code),
		logging.Int("recipients", len(mail.Recipients)),
	)
	return nil
}

// SendPendingPosts tries the queued posts in order and stops after the first
// one that is published. Failures are logged and the post stays queued.
func (d *Dispatcher) SendPendingPosts(ctx context.Context) (SendResult, error) {
	var result SendResult
	if d.poster == nil {
		return result, services.Wrap(services.ErrConfiguration, "dispatch", "send posts", "no social provider configured", nil)
	}
	keys, err := d.queues.List(ctx, queue.ToPost)
	if err != nil {
		return result, err
	}
	for _, code := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempted++
		posted, err := d.sendPost(ctx, code)
		if posted {
			result.Sent++
			if err != nil {
				logging.ErrorWithContext(d.logger, "post published but not recorded", "post_record_failed",
					logging.String(logging.FieldSessionCode, code),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "move the post from to-post to posted by hand"),
					logging.String(logging.FieldImpact, "the next run would publish this post again"),
				)
			}
			break
		}
		if err != nil {
			result.Failed++
			logging.WarnWithContext(d.logger, "post not sent", "post_send_failed",
				logging.String(logging.FieldSessionCode, code),
				logging.Error(err),
				logging.String(logging.FieldImpact, "post stays queued for the next run"),
			)
			continue
		}
	}
	if result.Attempted == 0 {
		d.logger.Info("no posts queued")
	}
	return result, nil
}

// sendPost reports posted once the provider accepted the post, even when
// recording it afterwards fails.
func (d *Dispatcher) sendPost(ctx context.Context, code string) (posted bool, err error) {
	post, err := queue.ReadJSON[Post](ctx, d.queues, queue.ToPost, code)
	if err != nil {
		return false, err
	}
	resp, err := d.poster.CreatePost(ctx, social.Post{
		Text:        post.Text,
		Link:        WatchURL(post.PlatformVideoID),
		Title:       post.Title,
		Description: post.TeaserText,
	})
	if err != nil {
		return false, err
	}
	post.Response = resp
	if err := queue.WriteJSON(ctx, d.queues, queue.ToPost, code, post); err != nil {
		return true, err
	}
	if err := d.queues.Move(ctx, code, queue.ToPost, queue.Posted); err != nil {
		return true, err
	}
	d.logger.Info("post published", logging.String(logging.FieldSessionCode, code))
	d.annotateRecord(code, func(rec *records.SessionRecord) {
		rec.SocialPost = post.Text
		rec.SocialResponse = resp
	})
	return true, nil
}

// SendPendingEmails tries every queued mail once and moves the delivered
// ones to emailed.
func (d *Dispatcher) SendPendingEmails(ctx context.Context) (SendResult, error) {
	var result SendResult
	if d.mailer == nil {
		return result, services.Wrap(services.ErrConfiguration, "dispatch", "send emails", "no email server configured", nil)
	}
	keys, err := d.queues.List(ctx, queue.ToEmail)
	if err != nil {
		return result, err
	}
	for _, code := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempted++
		if err := d.sendMail(ctx, code); err != nil {
			result.Failed++
			logging.WarnWithContext(d.logger, "mail not sent", "mail_send_failed",
				logging.String(logging.FieldSessionCode, code),
				logging.Error(err),
				logging.String(logging.FieldImpact, "mail stays queued for the next run"),
			)
			continue
		}
		result.Sent++
	}
	d.logger.Info("mail run complete",
		logging.Int("sent", result.Sent),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (d *Dispatcher) sendMail(ctx context.Context, code string) error {
	mail, err := queue.ReadJSON[Mail](ctx, d.queues, queue.ToEmail, code)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, email.Message{To: mail.Recipients, Subject: mail.Subject, Body: mail.Text}); err != nil {
		return err
	}
	if err := d.queues.Move(ctx, code, queue.ToEmail, queue.Emailed); err != nil {
		if errors.Is(err, queue.ErrExists) {
			d.logger.Info("mail already marked sent", logging.String(logging.FieldSessionCode, code))
			return nil
		}
		return err
	}
	d.logger.Info("mail sent", logging.String(logging.FieldSessionCode, code))
	return nil
}

func (d *Dispatcher) annotateRecord(code string, update func(*records.SessionRecord)) {
	if d.records == nil {
		return
	}
	rec, err := d.records.Load(code)
	if err == nil {
		update(rec)
		err = d.records.Save(rec)
	}
	if err != nil {
		logging.WarnWithContext(d.logger, "record not annotated", "record_update_failed",
			logging.String(logging.FieldSessionCode, code),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the send succeeded; only the record copy is missing"),
		)
	}
}

package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"confops/internal/logging"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/services"
)

// Assignment records the instant given to one item.
type Assignment struct {
	Code      string
	From      queue.Name
	PublishAt time.Time
}

// Scheduler writes publish instants and moves items to scheduled-for-update.
type Scheduler struct {
	queues  queue.Store
	shuffle func(n int, swap func(i, j int))
	logger  *slog.Logger
}

// Option customizes the Scheduler.
type Option func(*Scheduler)

// WithRand makes the shuffle use r.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.shuffle = r.Shuffle
		}
	}
}

// New constructs a Scheduler over store.
func New(store queue.Store, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		queues:  store,
		shuffle: rand.Shuffle,
		logger:  logging.NewComponentLogger(logger, "schedule"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	code  string
	queue queue.Name
}

// Assign shuffles every item in from and pairs it with the instants of plan.
// Items already in scheduled-for-update are rewritten in place. Without from,
// the prepared queue is used. Invalid input fails before anything changes;
// per-item failures are logged and skipped.
func (s *Scheduler) Assign(ctx context.Context, from []queue.Name, plan Plan) ([]Assignment, error) {
	if len(from) == 0 {
		from = []queue.Name{queue.Prepared}
	}
	for _, name := range from {
		if fam, ok := queue.FamilyOf(name); !ok || fam != queue.FamilyRelease || name == queue.Published {
			return nil, fmt.Errorf("%w: cannot schedule from queue %q", ErrInvalidInput, name)
		}
	}
	instants, err := Generator(plan)
	if err != nil {
		return nil, err
	}

	var items []candidate
	for _, name := range from {
		keys, err := s.queues.List(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", name, err)
		}
		for _, key := range keys {
			items = append(items, candidate{code: key, queue: name})
		}
	}
	s.shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	assignments := make([]Assignment, 0, len(items))
	next := 0
	for at := range instants {
		if next >= len(items) {
			break
		}
		if err := ctx.Err(); err != nil {
			return assignments, err
		}
		item := items[next]
		next++
		if err := s.assignOne(ctx, item, at); err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				s.logger.Info("item left its queue during scheduling",
					logging.String(logging.FieldSessionCode, item.code),
					logging.String(logging.FieldQueue, item.queue.String()),
				)
				continue
			}
			logging.WarnWithContext(s.logger, "schedule item failed", "schedule_item_failed",
				logging.String(logging.FieldSessionCode, item.code),
				logging.String(logging.FieldQueue, item.queue.String()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item keeps its previous schedule"),
			)
			continue
		}
		assignments = append(assignments, Assignment{Code: item.code, From: item.queue, PublishAt: at})
	}
	if unassigned := len(items) - next; unassigned > 0 {
		s.logger.Info("instants exhausted before items",
			logging.Int("unassigned", unassigned),
		)
	}
	s.logger.Info("publish instants assigned", logging.Int("assigned", len(assignments)))
	return assignments, nil
}

func (s *Scheduler) assignOne(ctx context.Context, item candidate, at time.Time) error {
	video, err := queue.ReadJSON[records.VideoResource](ctx, s.queues, item.queue, item.code)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return err
		}
		return services.Wrap(services.ErrValidation, "schedule", "read", item.code, err)
	}
	publishAt := at.UTC()
	video.Status.PublishAt = &publishAt
	if err := queue.WriteJSON(ctx, s.queues, item.queue, item.code, video); err != nil {
		return err
	}
	if item.queue == queue.ScheduledUpdate {
		return nil
	}
	return s.queues.Move(ctx, item.code, item.queue, queue.ScheduledUpdate)
}

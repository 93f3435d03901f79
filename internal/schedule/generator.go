// Package schedule assigns publish instants to queued videos.
//
// Instants come from one of two generators: Interval yields an unbounded
// sequence spaced by a fixed duration, Window divides [start, end) into a
// fixed number of equal steps. The Scheduler shuffles the candidate items
// and pairs them with instants in generation order, stopping at whichever
// runs out first.
package schedule

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInput marks unusable generator arguments.
var ErrInvalidInput = errors.New("invalid schedule input")

// Plan selects a generator. A positive Interval wins; otherwise End and
// Steps describe a window.
type Plan struct {
	Start    time.Time
	Interval time.Duration
	End      time.Time
	Steps    int
}

// Interval yields start, start+interval, start+2*interval, and so on without
// end.
func Interval(start time.Time, interval time.Duration) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for i := 0; ; i++ {
			if !yield(start.Add(time.Duration(i) * interval)) {
				return
			}
		}
	}
}

// Window yields exactly steps instants start + i*(end-start)/steps for i in
// [0, steps).
func Window(start, end time.Time, steps int) (iter.Seq[time.Time], error) {
	if steps <= 1 {
		return nil, fmt.Errorf("%w: steps must be an integer greater than 1, got %d", ErrInvalidInput, steps)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidInput,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	span := end.Sub(start)
	n := time.Duration(steps)
	q, r := span/n, span%n
	return func(yield func(time.Time) bool) {
		for i := range steps {
			d := time.Duration(i)
			if !yield(start.Add(q*d + r*d/n)) {
				return
			}
		}
	}, nil
}

// Generator validates plan and returns the matching sequence.
func Generator(plan Plan) (iter.Seq[time.Time], error) {
	if plan.Start.IsZero() {
		return nil, fmt.Errorf("%w: start is required", ErrInvalidInput)
	}
	switch {
	case plan.Interval < 0:
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidInput, plan.Interval)
	case plan.Interval > 0:
		return Interval(plan.Start, plan.Interval), nil
	case plan.End.IsZero():
		return nil, fmt.Errorf("%w: either an interval or an end with steps is required", ErrInvalidInput)
	default:
		return Window(plan.Start, plan.End, plan.Steps)
	}
}

// StepsFromString parses an operator-supplied step count.
func StepsFromString(value string) (int, error) {
	steps, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: steps %q is not an integer", ErrInvalidInput, value)
	}
	return steps, nil
}

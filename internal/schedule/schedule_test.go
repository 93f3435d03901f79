package schedule_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/schedule"
	"confops/internal/testsupport"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func TestWindowYieldsStepsIncreasingFromStart(t *testing.T) {
	cases := []struct {
		end   time.Time
		steps int
	}{
		{t0.Add(8 * time.Hour), 2},
		{t0.Add(8 * time.Hour), 4},
		{t0.Add(7 * time.Hour), 3},
		{t0.Add(72 * time.Hour), 17},
		{t0.Add(10 * time.Nanosecond), 7},
	}
	for _, tc := range cases {
		seq, err := schedule.Window(t0, tc.end, tc.steps)
		if err != nil {
			t.Fatalf("Window(%d): %v", tc.steps, err)
		}
		got := slices.Collect(seq)
		if len(got) != tc.steps {
			t.Fatalf("got %d instants want %d", len(got), tc.steps)
		}
		if !got[0].Equal(t0) {
			t.Fatalf("first = %s want %s", got[0], t0)
		}
		for i := 1; i < len(got); i++ {
			if !got[i].After(got[i-1]) {
				t.Fatalf("instants not strictly increasing at %d: %v", i, got)
			}
		}
		if !got[len(got)-1].Before(tc.end) {
			t.Fatalf("last instant %s not before end %s", got[len(got)-1], tc.end)
		}
	}
}

func TestWindowBoundaries(t *testing.T) {
	seq, err := schedule.Window(t0, t0.Add(8*time.Hour), 4)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	want := []time.Time{t0, t0.Add(2 * time.Hour), t0.Add(4 * time.Hour), t0.Add(6 * time.Hour)}
	got := slices.Collect(seq)
	if !slices.EqualFunc(got, want, time.Time.Equal) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestIntervalNthValue(t *testing.T) {
	interval := 4 * time.Hour
	n := 0
	for at := range schedule.Interval(t0, interval) {
		n++
		if want := t0.Add(time.Duration(n-1) * interval); !at.Equal(want) {
			t.Fatalf("value %d = %s want %s", n, at, want)
		}
		if n == 50 {
			break
		}
	}
	if n != 50 {
		t.Fatalf("interval sequence stopped after %d values", n)
	}
}

func TestGeneratorInputErrors(t *testing.T) {
	cases := map[string]schedule.Plan{
		"no interval or end": {Start: t0},
		"end without steps":  {Start: t0, End: t0.Add(time.Hour)},
		"steps one":          {Start: t0, End: t0.Add(time.Hour), Steps: 1},
		"negative steps":     {Start: t0, End: t0.Add(time.Hour), Steps: -3},
		"end before start":   {Start: t0, End: t0.Add(-time.Hour), Steps: 3},
		"negative interval":  {Start: t0, Interval: -time.Hour},
		"missing start":      {Interval: time.Hour},
	}
	for name, plan := range cases {
		if _, err := schedule.Generator(plan); !errors.Is(err, schedule.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
	if _, err := schedule.Generator(schedule.Plan{Start: t0, Interval: time.Hour, Steps: 1}); err != nil {
		t.Fatalf("interval takes precedence: %v", err)
	}
}

func TestStepsFromString(t *testing.T) {
	for _, bad := range []string{"2.5", "three", ""} {
		if _, err := schedule.StepsFromString(bad); !errors.Is(err, schedule.ErrInvalidInput) {
			t.Fatalf("StepsFromString(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
	if n, err := schedule.StepsFromString(" 5 "); err != nil || n != 5 {
		t.Fatalf("StepsFromString(5) = %d, %v", n, err)
	}
}

func seedPrepared(t *testing.T, store queue.Store, codes ...string) {
	t.Helper()
	for _, code := range codes {
		if err := queue.WriteJSON(context.Background(), store, queue.Prepared, code, records.NewVideoResource("vid-"+code)); err != nil {
			t.Fatalf("seed %s: %v", code, err)
		}
	}
}

func TestAssignFiveItemsEveryFourHours(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	codes := []string{"AAAAAA", "BBBBBB", "CCCCCC", "DDDDDD", "EEEEEE"}
	seedPrepared(t, store, codes...)

	s := schedule.New(store, nil, schedule.WithRand(rand.New(rand.NewPCG(1, 2))))
	got, err := s.Assign(ctx, nil, schedule.Plan{Start: t0, Interval: 4 * time.Hour})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d assignments want 5", len(got))
	}

	wantInstants := map[time.Time]bool{}
	for i := range 5 {
		wantInstants[t0.Add(time.Duration(i)*4*time.Hour)] = false
	}
	seenCodes := map[string]bool{}
	for _, a := range got {
		used, ok := wantInstants[a.PublishAt]
		if !ok || used {
			t.Fatalf("unexpected or repeated instant %s", a.PublishAt)
		}
		wantInstants[a.PublishAt] = true
		if seenCodes[a.Code] {
			t.Fatalf("code %s assigned twice", a.Code)
		}
		seenCodes[a.Code] = true

		video, err := queue.ReadJSON[records.VideoResource](ctx, store, queue.ScheduledUpdate, a.Code)
		if err != nil {
			t.Fatalf("read scheduled %s: %v", a.Code, err)
		}
		if video.Status.PublishAt == nil || !video.Status.PublishAt.Equal(a.PublishAt) {
			t.Fatalf("%s publishAt = %v want %s", a.Code, video.Status.PublishAt, a.PublishAt)
		}
	}
	if len(seenCodes) != 5 {
		t.Fatalf("assigned codes = %v", seenCodes)
	}
	if keys, _ := store.List(ctx, queue.Prepared); len(keys) != 0 {
		t.Fatalf("prepared should be drained, got %v", keys)
	}
}

func TestAssignStopsWhenWindowExhausted(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedPrepared(t, store, "AAAAAA", "BBBBBB", "CCCCCC", "DDDDDD", "EEEEEE")

	s := schedule.New(store, nil, schedule.WithRand(rand.New(rand.NewPCG(7, 7))))
	got, err := s.Assign(ctx, []queue.Name{queue.Prepared}, schedule.Plan{Start: t0, End: t0.Add(6 * time.Hour), Steps: 3})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d assignments want 3", len(got))
	}
	prepared, _ := store.List(ctx, queue.Prepared)
	scheduled, _ := store.List(ctx, queue.ScheduledUpdate)
	if len(prepared) != 2 || len(scheduled) != 3 {
		t.Fatalf("prepared=%v scheduled=%v", prepared, scheduled)
	}
}

func TestAssignRewritesScheduledInPlace(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	old := t0.Add(-48 * time.Hour)
	video := records.NewVideoResource("vid-1")
	video.Status.PublishAt = &old
	if err := queue.WriteJSON(ctx, store, queue.ScheduledUpdate, "AAAAAA", video); err != nil {
		t.Fatal(err)
	}

	s := schedule.New(store, nil)
	got, err := s.Assign(ctx, []queue.Name{queue.ScheduledUpdate}, schedule.Plan{Start: t0, Interval: time.Hour})
	if err != nil || len(got) != 1 {
		t.Fatalf("Assign = %v, %v", got, err)
	}
	updated, err := queue.ReadJSON[records.VideoResource](ctx, store, queue.ScheduledUpdate, "AAAAAA")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !updated.Status.PublishAt.Equal(t0) {
		t.Fatalf("publishAt = %s want %s", updated.Status.PublishAt, t0)
	}
}

func TestAssignRejectsBadInputWithoutChanges(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedPrepared(t, store, "AAAAAA")
	s := schedule.New(store, nil)

	if _, err := s.Assign(ctx, nil, schedule.Plan{Start: t0}); !errors.Is(err, schedule.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := s.Assign(ctx, []queue.Name{queue.Published}, schedule.Plan{Start: t0, Interval: time.Hour}); !errors.Is(err, schedule.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for published, got %v", err)
	}
	if _, err := s.Assign(ctx, []queue.Name{queue.ToPost}, schedule.Plan{Start: t0, Interval: time.Hour}); !errors.Is(err, schedule.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for post queue, got %v", err)
	}
	if keys, _ := store.List(ctx, queue.Prepared); len(keys) != 1 {
		t.Fatalf("prepared changed: %v", keys)
	}
}

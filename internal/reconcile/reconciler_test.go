package reconcile_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"confops/internal/queue"
	"confops/internal/reconcile"
	"confops/internal/records"
	"confops/internal/services/youtube"
	"confops/internal/testsupport"
)

var now = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

type fakeLister struct {
	statuses map[string]string
	err      error
	calls    [][]string
}

func (f *fakeLister) VideoStatuses(_ context.Context, ids []string) ([]youtube.VideoStatus, error) {
	f.calls = append(f.calls, slices.Clone(ids))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]youtube.VideoStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, youtube.VideoStatus{ID: id, PrivacyStatus: f.statuses[id]})
	}
	return out, nil
}

type fakeDispatcher struct {
	posts   []string
	mails   []string
	failFor string
}

func (f *fakeDispatcher) PreparePost(_ context.Context, rec *records.SessionRecord) error {
	if rec.Code == f.failFor {
		return errors.New("boom")
	}
	f.posts = append(f.posts, rec.Code)
	return nil
}

func (f *fakeDispatcher) PrepareMail(_ context.Context, rec *records.SessionRecord) error {
	f.mails = append(f.mails, rec.Code)
	return nil
}

type fixture struct {
	store      queue.Store
	recs       *records.Store
	lister     *fakeLister
	dispatcher *fakeDispatcher
	rec        *reconcile.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &fixture{
		store:      testsupport.MustOpenStore(t, cfg),
		recs:       testsupport.MustRecords(t, cfg),
		lister:     &fakeLister{statuses: map[string]string{}},
		dispatcher: &fakeDispatcher{},
	}
	f.rec = reconcile.New(f.store, f.recs, f.lister, f.dispatcher, nil, reconcile.WithClock(func() time.Time { return now }))
	return f
}

func (f *fixture) schedule(t *testing.T, q queue.Name, code, videoID string, at time.Time) {
	t.Helper()
	video := records.NewVideoResource(videoID)
	video.Status.PrivacyStatus = records.PrivacyPrivate
	video.Status.PublishAt = &at
	if err := queue.WriteJSON(context.Background(), f.store, q, code, video); err != nil {
		t.Fatalf("write %s: %v", code, err)
	}
	testsupport.SaveRecords(t, f.recs, &records.SessionRecord{Code: code, Title: "Talk " + code, PlatformVideoID: videoID})
}

func TestReconcileOnlyPublicItemsAreReleased(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.schedule(t, queue.ScheduledUpdate, "AAAAAA", "vid-a", now.Add(-time.Hour))
	f.schedule(t, queue.UpdatedOnPlatform, "BBBBBB", "vid-b", now.Add(-time.Hour))
	f.lister.statuses = map[string]string{"vid-a": "public", "vid-b": "private"}

	result, err := f.rec.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Published != 1 || result.Pending != 1 || result.Due != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(f.lister.calls) != 1 || len(f.lister.calls[0]) != 2 {
		t.Fatalf("expected one batched query for both items, got %v", f.lister.calls)
	}
	if !slices.Equal(f.dispatcher.posts, []string{"AAAAAA"}) || !slices.Equal(f.dispatcher.mails, []string{"AAAAAA"}) {
		t.Fatalf("dispatch posts=%v mails=%v", f.dispatcher.posts, f.dispatcher.mails)
	}

	published, err := queue.ReadJSON[records.VideoResource](ctx, f.store, queue.Published, "AAAAAA")
	if err != nil {
		t.Fatalf("A not published: %v", err)
	}
	if published.Status.PrivacyStatus != records.PrivacyPublic {
		t.Fatalf("A privacy = %q", published.Status.PrivacyStatus)
	}
	b, err := queue.ReadJSON[records.VideoResource](ctx, f.store, queue.UpdatedOnPlatform, "BBBBBB")
	if err != nil {
		t.Fatalf("B moved: %v", err)
	}
	if b.Status.PrivacyStatus != records.PrivacyPrivate {
		t.Fatalf("B privacy changed to %q", b.Status.PrivacyStatus)
	}

	again, err := f.rec.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Published != 0 || len(f.dispatcher.posts) != 1 {
		t.Fatalf("published item dispatched again: %+v posts=%v", again, f.dispatcher.posts)
	}
	if len(f.lister.calls[1]) != 1 || f.lister.calls[1][0] != "vid-b" {
		t.Fatalf("second query should only cover B, got %v", f.lister.calls[1])
	}
}

func TestReconcileQueryFailureLeavesQueuesUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.schedule(t, queue.ScheduledUpdate, "AAAAAA", "vid-a", now.Add(-time.Hour))
	f.lister.err = errors.New("quota exceeded")

	if _, err := f.rec.Run(ctx); err == nil {
		t.Fatal("expected error")
	}
	if keys, _ := f.store.List(ctx, queue.ScheduledUpdate); len(keys) != 1 {
		t.Fatalf("scheduled changed: %v", keys)
	}
	if keys, _ := f.store.List(ctx, queue.Published); len(keys) != 0 {
		t.Fatalf("published changed: %v", keys)
	}
	if len(f.dispatcher.posts) != 0 {
		t.Fatalf("dispatch ran: %v", f.dispatcher.posts)
	}
	video, _ := queue.ReadJSON[records.VideoResource](ctx, f.store, queue.ScheduledUpdate, "AAAAAA")
	if video.Status.PrivacyStatus != records.PrivacyPrivate {
		t.Fatalf("document mutated: %+v", video.Status)
	}
}

func TestReconcileSkipsItemsNotYetDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.schedule(t, queue.ScheduledUpdate, "AAAAAA", "vid-a", now.Add(time.Hour))

	result, err := f.rec.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Due != 0 || len(f.lister.calls) != 0 {
		t.Fatalf("future item queried: %+v calls=%v", result, f.lister.calls)
	}
}

func TestReconcilePerItemFailureContinues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.schedule(t, queue.ScheduledUpdate, "AAAAAA", "vid-a", now.Add(-time.Hour))
	f.schedule(t, queue.ScheduledUpdate, "BBBBBB", "vid-b", now)
	f.lister.statuses = map[string]string{"vid-a": "public", "vid-b": "public"}
	f.dispatcher.failFor = "AAAAAA"

	result, err := f.rec.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Published != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if keys, _ := f.store.List(ctx, queue.ScheduledUpdate); !slices.Equal(keys, []string{"AAAAAA"}) {
		t.Fatalf("failed item should stay scheduled, got %v", keys)
	}
	if keys, _ := f.store.List(ctx, queue.Published); !slices.Equal(keys, []string{"BBBBBB"}) {
		t.Fatalf("published = %v", keys)
	}
}

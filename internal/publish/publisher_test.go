package publish_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"confops/internal/publish"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/services"
	"confops/internal/services/youtube"
	"confops/internal/testsupport"
)

var now = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

type fakeUpdater struct {
	updates []youtube.VideoUpdate
	failID  string
}

func (f *fakeUpdater) UpdateVideo(_ context.Context, u youtube.VideoUpdate) (json.RawMessage, error) {
	if u.ID == f.failID {
		return nil, services.Wrap(services.ErrExternalTool, "youtube", "update", "http 403", nil)
	}
	f.updates = append(f.updates, u)
	return json.RawMessage(`{"id":"` + u.ID + `","status":{"privacyStatus":"private"}}`), nil
}

type fakeDispatcher struct {
	posts, mails []string
	mailErr      error
}

func (f *fakeDispatcher) PreparePost(_ context.Context, rec *records.SessionRecord) error {
	f.posts = append(f.posts, rec.Code)
	return nil
}

func (f *fakeDispatcher) PrepareMail(_ context.Context, rec *records.SessionRecord) error {
	if f.mailErr != nil {
		return f.mailErr
	}
	f.mails = append(f.mails, rec.Code)
	return nil
}

func seed(t *testing.T, store queue.Store, q queue.Name, code, videoID string, at *time.Time) {
	t.Helper()
	video := records.NewVideoResource(videoID)
	video.Snippet.Title = "Title " + code
	video.Status.PublishAt = at
	if at != nil {
		video.Status.PrivacyStatus = records.PrivacyPrivate
	}
	if err := queue.WriteJSON(context.Background(), store, q, code, video); err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
}

func TestPushScheduledFiltersByChannel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	at := now.Add(4 * time.Hour)
	seed(t, store, queue.ScheduledUpdate, "ABC123", "vid-a", &at)
	seed(t, store, queue.ScheduledUpdate, "DEF456", "vid-b", &at)
	seed(t, store, queue.ScheduledUpdate, "GHI789", "vid-c", &at)

	updater := &fakeUpdater{failID: "vid-c"}
	channels := map[string]string{"ABC123": "pydata", "DEF456": "pycon", "GHI789": "pydata"}
	pub := publish.New(store, testsupport.MustRecords(t, cfg), updater, nil, channels, nil)

	res, err := pub.PushScheduled(context.Background(), "pydata")
	if err != nil {
		t.Fatalf("PushScheduled: %v", err)
	}
	if res.Pushed != 1 || res.Failed != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(updater.updates) != 1 || updater.updates[0].ID != "vid-a" || updater.updates[0].PublishAt == nil || !updater.updates[0].PublishAt.Equal(at) {
		t.Fatalf("unexpected updates %+v", updater.updates)
	}
	where, _, _ := store.Locate(context.Background(), "ABC123", queue.ReleaseQueues())
	if where != queue.UpdatedOnPlatform {
		t.Fatalf("ABC123 in %s", where)
	}
	where, _, _ = store.Locate(context.Background(), "GHI789", queue.ReleaseQueues())
	if where != queue.ScheduledUpdate {
		t.Fatalf("failed item moved to %s", where)
	}

	totals, err := pub.UnpublishedTotals(context.Background())
	if err != nil || totals["pydata"] != 1 || len(totals) != 1 {
		t.Fatalf("totals = %v, %v", totals, err)
	}
}

func TestReleaseNow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	recs := testsupport.MustRecords(t, cfg)
	testsupport.SaveRecords(t, recs, &records.SessionRecord{Code: "ABC123", Title: "Intro", PlatformVideoID: "vid-a"})
	seed(t, store, queue.Prepared, "ABC123", "vid-a", nil)

	updater := &fakeUpdater{}
	dispatcher := &fakeDispatcher{}
	pub := publish.New(store, recs, updater, dispatcher, nil, nil, publish.WithClock(func() time.Time { return now }))

	if err := pub.ReleaseNow(context.Background(), "ABC123"); err != nil {
		t.Fatalf("ReleaseNow: %v", err)
	}
	u := updater.updates[0]
	if u.PublishAt == nil || !u.PublishAt.Equal(now.Add(5*time.Second)) || u.PrivacyStatus != records.PrivacyPrivate {
		t.Fatalf("unexpected update %+v", u)
	}
	where, _, _ := store.Locate(context.Background(), "ABC123", queue.ReleaseQueues())
	if where != queue.Published {
		t.Fatalf("item in %s", where)
	}
	rec, _ := recs.Load("ABC123")
	if len(rec.PlatformMetadata) == 0 {
		t.Fatal("platform response not stored")
	}
	if len(dispatcher.posts) != 1 || len(dispatcher.mails) != 1 {
		t.Fatalf("dispatch posts=%v mails=%v", dispatcher.posts, dispatcher.mails)
	}

	if err := pub.ReleaseNow(context.Background(), "ABC123"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation on second release, got %v", err)
	}
	if err := pub.ReleaseNow(context.Background(), "ZZZ999"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReleaseNowKeepsItemQueuedWhenDispatchFails(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	recs := testsupport.MustRecords(t, cfg)
	testsupport.SaveRecords(t, recs, &records.SessionRecord{Code: "ABC123", Title: "Intro", PlatformVideoID: "vid-a"})
	seed(t, store, queue.Prepared, "ABC123", "vid-a", nil)

	dispatcher := &fakeDispatcher{mailErr: services.Wrap(services.ErrTransient, "dispatch", "prepare mail", "disk full", nil)}
	pub := publish.New(store, recs, &fakeUpdater{}, dispatcher, nil, nil, publish.WithClock(func() time.Time { return now }))

	if err := pub.ReleaseNow(ctx, "ABC123"); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected the mail failure, got %v", err)
	}
	where, found, err := store.Locate(ctx, "ABC123", queue.ReleaseQueues())
	if err != nil || !found || where != queue.Prepared {
		t.Fatalf("item in %q (found=%v, err=%v), want %s", where, found, err, queue.Prepared)
	}

	dispatcher.mailErr = nil
	if err := pub.ReleaseNow(ctx, "ABC123"); err != nil {
		t.Fatalf("retry ReleaseNow: %v", err)
	}
	if len(dispatcher.mails) != 1 {
		t.Fatalf("mails = %v", dispatcher.mails)
	}
	if where, _, _ := store.Locate(ctx, "ABC123", queue.ReleaseQueues()); where != queue.Published {
		t.Fatalf("item in %s after retry", where)
	}
}

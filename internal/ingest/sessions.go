package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"confops/internal/fileutil"
	"confops/internal/logging"
	"confops/internal/records"
	"confops/internal/services"
	"confops/internal/services/pretalx"
)

const (
	submissionsCache = "pretalx"
	speakersCache    = "pretalx_speakers"
)

// SessionsResult summarizes a Sessions run.
type SessionsResult struct {
	Submissions int
	Speakers    int
	Records     int
	FromCache   bool
}

// Sessions loads confirmed submissions and speakers and writes one record per
// submission. Cached responses are used unless reload is set. Generated texts
// and platform fields of existing records are kept.
func (s *Service) Sessions(ctx context.Context, reload bool) (SessionsResult, error) {
	var result SessionsResult
	subDir := s.cfg.CacheDir(submissionsCache)
	spkDir := s.cfg.CacheDir(speakersCache)

	subs, subsCached, err := s.submissions(ctx, subDir, reload)
	if err != nil {
		return result, err
	}
	speakers, spkCached, err := s.speakers(ctx, spkDir, reload)
	if err != nil {
		return result, err
	}
	result.Submissions = len(subs)
	result.Speakers = len(speakers)
	result.FromCache = subsCached && spkCached

	byCode := make(map[string]pretalx.Speaker, len(speakers))
	for _, sp := range speakers {
		byCode[sp.Code] = sp
	}

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rec := s.buildRecord(sub, byCode)
		if existing, err := s.recs.Load(rec.Code); err == nil {
			preserveDerived(rec, existing)
		} else if !errors.Is(err, services.ErrNotFound) {
			logging.WarnWithContext(s.logger, "existing record unreadable; rebuilding", "record_rebuilt",
				logging.String(logging.FieldSessionCode, rec.Code),
				logging.Error(err),
				logging.String(logging.FieldImpact, "generated texts for this session are regenerated"),
			)
		}
		if err := s.recs.Save(rec); err != nil {
			return result, fmt.Errorf("save record %s: %w", rec.Code, err)
		}
		result.Records++
	}

	s.logger.Info("sessions ingested",
		logging.Int("submissions", result.Submissions),
		logging.Int("speakers", result.Speakers),
		logging.Int("records", result.Records),
		logging.Bool("from_cache", result.FromCache),
	)
	return result, nil
}

func (s *Service) submissions(ctx context.Context, dir string, reload bool) ([]pretalx.Submission, bool, error) {
	if !reload {
		raws, err := readCache(dir)
		if err != nil {
			return nil, false, err
		}
		if len(raws) > 0 {
			subs := make([]pretalx.Submission, 0, len(raws))
			for _, raw := range raws {
				var sub pretalx.Submission
				if err := json.Unmarshal(raw, &sub); err != nil {
					return nil, false, services.Wrap(services.ErrValidation, "ingest", "sessions", "malformed cached submission", err)
				}
				sub.Raw = raw
				subs = append(subs, sub)
			}
			return subs, true, nil
		}
	}
	if s.sessions == nil {
		return nil, false, services.Wrap(services.ErrConfiguration, "ingest", "sessions", "no talk-management backend configured", nil)
	}
	subs, err := s.sessions.Submissions(ctx, s.cfg.Pretalx.EventSlug, pretalx.ConfirmedParams())
	if err != nil {
		return nil, false, err
	}
	entries := make(map[string]json.RawMessage, len(subs))
	for _, sub := range subs {
		entries[sub.Code] = sub.Raw
	}
	if err := writeCache(dir, entries); err != nil {
		return nil, false, err
	}
	return subs, false, nil
}

func (s *Service) speakers(ctx context.Context, dir string, reload bool) ([]pretalx.Speaker, bool, error) {
	if !reload {
		raws, err := readCache(dir)
		if err != nil {
			return nil, false, err
		}
		if len(raws) > 0 {
			out := make([]pretalx.Speaker, 0, len(raws))
			for _, raw := range raws {
				var sp pretalx.Speaker
				if err := json.Unmarshal(raw, &sp); err != nil {
					return nil, false, services.Wrap(services.ErrValidation, "ingest", "speakers", "malformed cached speaker", err)
				}
				sp.Raw = raw
				out = append(out, sp)
			}
			return out, true, nil
		}
	}
	if s.sessions == nil {
		return nil, false, services.Wrap(services.ErrConfiguration, "ingest", "speakers", "no talk-management backend configured", nil)
	}
	speakers, err := s.sessions.Speakers(ctx, s.cfg.Pretalx.EventSlug, url.Values{"questions": {"all"}})
	if err != nil {
		return nil, false, err
	}
	entries := make(map[string]json.RawMessage, len(speakers))
	for _, sp := range speakers {
		entries[sp.Code] = sp.Raw
	}
	if err := writeCache(dir, entries); err != nil {
		return nil, false, err
	}
	return speakers, false, nil
}

func (s *Service) buildRecord(sub pretalx.Submission, speakers map[string]pretalx.Speaker) *records.SessionRecord {
	qmap := s.cfg.Pretalx.QuestionMap
	rec := &records.SessionRecord{
		Code:        sub.Code,
		Title:       strings.TrimSpace(sub.Title),
		Abstract:    sub.Abstract,
		Description: sub.Description,
		Track:       sub.Track.String(),
		DoNotRecord: sub.DoNotRecord,
		Speakers:    make([]records.Speaker, 0, len(sub.Speakers)),
	}
	if sub.Slot != nil {
		rec.SlotStart = sub.Slot.Start
	}

	var speakerAnswers []pretalx.Answer
	for _, ref := range sub.Speakers {
		speaker := records.Speaker{
			Code:      ref.Code,
			Name:      ref.Name,
			Email:     ref.Email,
			Biography: ref.Biography,
		}
		var answers []pretalx.Answer
		if full, ok := speakers[ref.Code]; ok {
			speaker.Name = firstNonEmpty(full.Name, speaker.Name)
			speaker.Email = firstNonEmpty(full.Email, speaker.Email)
			speaker.Biography = firstNonEmpty(full.Biography, speaker.Biography)
			answers = full.Answers
		}
		applySpeakerAnswers(&speaker, answers, qmap)
		speakerAnswers = append(speakerAnswers, answers...)
		rec.Speakers = append(rec.Speakers, speaker)
	}

	if id, ok := qmap["as_tweet"]; ok {
		if ans, found := pretalx.AnswerTo(sub.Answers, id); found {
			rec.AsTweet = strings.TrimSpace(ans)
		} else if ans, found := pretalx.AnswerTo(speakerAnswers, id); found {
			rec.AsTweet = strings.TrimSpace(ans)
		}
	}
	rec.Normalize()
	return rec
}

func applySpeakerAnswers(sp *records.Speaker, answers []pretalx.Answer, qmap map[string]int) {
	fields := map[string]*string{
		"company":  &sp.Company,
		"job":      &sp.Job,
		"linkedin": &sp.LinkedIn,
		"github":   &sp.GitHub,
		"x_handle": &sp.XHandle,
	}
	for attr, id := range qmap {
		target, ok := fields[attr]
		if !ok {
			continue
		}
		if ans, found := pretalx.AnswerTo(answers, id); found {
			if ans = strings.TrimSpace(ans); ans != "" {
				*target = ans
			}
		}
	}
}

// preserveDerived copies generated and platform fields from the stored record.
func preserveDerived(rec, existing *records.SessionRecord) {
	rec.TeaserText = existing.TeaserText
	rec.ShortText = existing.ShortText
	rec.LongText = existing.LongText
	if rec.AsTweet == "" {
		rec.AsTweet = existing.AsTweet
	}
	rec.Channel = existing.Channel
	rec.PlatformVideoID = existing.PlatformVideoID
	rec.PlatformTitle = existing.PlatformTitle
	rec.PlatformDescription = existing.PlatformDescription
	rec.RecordedDate = existing.RecordedDate
	rec.PlatformMetadata = existing.PlatformMetadata
	rec.SocialResponse = existing.SocialResponse
	rec.SocialPost = existing.SocialPost
}

func readCache(dir string) ([]json.RawMessage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := make([]json.RawMessage, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read cache entry %s: %w", name, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// writeCache replaces the cache directory contents with entries.
func writeCache(dir string, entries map[string]json.RawMessage) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear cache %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache %s: %w", dir, err)
	}
	for code, raw := range entries {
		if code == "" || len(raw) == 0 {
			continue
		}
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, code+".json"), raw, 0o644); err != nil {
			return fmt.Errorf("write cache entry %s: %w", code, err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

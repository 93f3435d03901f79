package ingest

import (
	"context"
	"fmt"
	"strings"

	"confops/internal/logging"
	"confops/internal/records"
	"confops/internal/services"
)

// Token budgets and temperatures of the generated texts.
const (
	TeaserTokens      = 50
	TeaserTemperature = 0.7
	ShortTokens       = 100
	LongTokens        = 300
	BodyTemperature   = 0.9
)

// DescriptionsResult summarizes a Descriptions run.
type DescriptionsResult struct {
	Updated int
	Skipped int
	Failed  int
}

// Descriptions generates the teaser, short and long texts of every record
// missing one, or of all records when replace is set.
func (s *Service) Descriptions(ctx context.Context, replace bool) (DescriptionsResult, error) {
	var result DescriptionsResult
	if s.completer == nil {
		return result, services.Wrap(services.ErrConfiguration, "ingest", "descriptions", "no language model configured", nil)
	}
	codes, err := s.recs.Codes()
	if err != nil {
		return result, err
	}
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rec, err := s.recs.Load(code)
		if err != nil {
			result.Failed++
			logging.WarnWithContext(s.logger, "record unreadable", "describe_failed",
				logging.String(logging.FieldSessionCode, code),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no promotional texts for this session"),
			)
			continue
		}
		if !replace && !rec.NeedsTexts() {
			result.Skipped++
			continue
		}
		if err := s.describe(ctx, rec, replace); err != nil {
			result.Failed++
			logging.WarnWithContext(s.logger, "text generation failed", "describe_failed",
				logging.String(logging.FieldSessionCode, code),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun confops describe; finished texts are kept"),
			)
			continue
		}
		result.Updated++
		s.logger.Info("descriptions added", logging.String(logging.FieldSessionCode, code))
	}
	return result, nil
}

// describe fills the missing texts, saving after each so partial progress
// survives a failure.
func (s *Service) describe(ctx context.Context, rec *records.SessionRecord, replace bool) error {
	info := PromptInput(rec)
	bodyPrompt := s.cfg.LLM.DescriptionPrompt
	steps := []struct {
		field       *string
		system      string
		tokens      int
		temperature float64
	}{
		{&rec.TeaserText, s.cfg.LLM.TeaserPrompt, TeaserTokens, TeaserTemperature},
		{&rec.ShortText, sizedPrompt(bodyPrompt, ShortTokens), ShortTokens, BodyTemperature},
		{&rec.LongText, sizedPrompt(bodyPrompt, LongTokens), LongTokens, BodyTemperature},
	}
	for _, step := range steps {
		if !replace && strings.TrimSpace(*step.field) != "" {
			continue
		}
		text, err := s.completer.Complete(ctx, step.system, info, step.tokens, step.temperature)
		if err != nil {
			return err
		}
		*step.field = strings.TrimSpace(text)
		if err := s.recs.Save(rec); err != nil {
			return err
		}
	}
	return nil
}

// PromptInput renders the session facts handed to the language model.
func PromptInput(rec *records.SessionRecord) string {
	speakers := make([]string, 0, len(rec.Speakers))
	for _, sp := range rec.Speakers {
		speakers = append(speakers, fmt.Sprintf("%s (%s)\nbiography:\n%s", sp.Name, sp.Job, sp.Biography))
	}
	return fmt.Sprintf("title:%s\nspeaker(s):\n%s\ndescription:\n%s\n%s",
		rec.Title, strings.Join(speakers, "\n"), rec.Abstract, rec.Description)
}

func sizedPrompt(prompt string, tokens int) string {
	if strings.Contains(prompt, "%d") {
		return fmt.Sprintf(prompt, tokens)
	}
	return prompt
}

package records

import (
	"encoding/json"
	"strings"
)

// Speaker is a session speaker merged from the talk-management API and the
// answers to custom questions.
type Speaker struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Biography string `json:"biography,omitempty"`
	Company   string `json:"company,omitempty"`
	Job       string `json:"job,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	XHandle   string `json:"x_handle,omitempty"`
}

// SessionRecord is the per-session document.
type SessionRecord struct {
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	Description string    `json:"description"`
	Track       string    `json:"track,omitempty"`
	SlotStart   string    `json:"slot_start,omitempty"`
	DoNotRecord bool      `json:"do_not_record,omitempty"`
	Speakers    []Speaker `json:"speakers"`

	AsTweet    string `json:"as_tweet"`
	TeaserText string `json:"teaser_text"`
	ShortText  string `json:"short_text"`
	LongText   string `json:"long_text"`

	Channel             string `json:"channel"`
	PlatformVideoID     string `json:"platform_video_id"`
	PlatformTitle       string `json:"platform_title"`
	PlatformDescription string `json:"platform_description"`
	RecordedDate        Date   `json:"recorded_date"`

	PlatformMetadata json.RawMessage `json:"platform_metadata,omitempty"`
	SocialResponse   json.RawMessage `json:"social_response,omitempty"`
	SocialPost       string          `json:"social_post,omitempty"`
}

// SpeakerNames returns the speaker names joined with ", ".
func (r *SessionRecord) SpeakerNames() string {
	names := make([]string, 0, len(r.Speakers))
	for _, s := range r.Speakers {
		if name := strings.TrimSpace(s.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// NeedsTexts reports whether any generated promotional text is missing.
func (r *SessionRecord) NeedsTexts() bool {
	return strings.TrimSpace(r.TeaserText) == "" ||
		strings.TrimSpace(r.ShortText) == "" ||
		strings.TrimSpace(r.LongText) == ""
}

// Normalize canonicalizes the social handles of every speaker.
func (r *SessionRecord) Normalize() {
	for i := range r.Speakers {
		r.Speakers[i].Normalize()
	}
}

// Normalize canonicalizes the social handles: X handles gain an @ prefix and
// drop any URL path, LinkedIn and GitHub values become absolute URLs.
func (s *Speaker) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.XHandle = normalizeXHandle(s.XHandle)
	s.LinkedIn = normalizeProfileURL(s.LinkedIn, "linkedin.", "https://linkedin.com/")
	s.GitHub = normalizeProfileURL(s.GitHub, "github.", "https://github.com/")
}

func normalizeXHandle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.Contains(value, "/") {
		parts := strings.FieldsFunc(value, func(r rune) bool { return r == '/' })
		if len(parts) > 0 {
			return "@" + strings.TrimPrefix(parts[len(parts)-1], "@")
		}
		return value
	}
	if !strings.Contains(value, "@") {
		return "@" + value
	}
	return value
}

func normalizeProfileURL(value, hostHint, base string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "http") {
		return value
	}
	if strings.Contains(value, hostHint) {
		return "https://" + value
	}
	return base + value
}

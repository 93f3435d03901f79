package dispatch

import (
	"encoding/json"
	"fmt"

	"confops/internal/records"
	"confops/internal/services/email"
)

// Post is a pending social announcement.
type Post struct {
	Code            string          `json:"code"`
	Text            string          `json:"text"`
	Title           string          `json:"title"`
	TeaserText      string          `json:"teaser_text"`
	ShortText       string          `json:"short_text"`
	LongText        string          `json:"long_text"`
	PlatformVideoID string          `json:"platform_video_id"`
	Response        json.RawMessage `json:"response,omitempty"`
}

// Mail is a pending speaker notification.
type Mail struct {
	Code       string            `json:"code"`
	Subject    string            `json:"subject"`
	Text       string            `json:"text"`
	Recipients []email.Recipient `json:"recipients"`
}

// WatchURL is the long video link used in posts.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ShortURL is the short video link used in emails.
func ShortURL(videoID string) string {
	return "https://youtu.be/" + videoID
}

// NewPost renders the announcement for rec.
func NewPost(rec *records.SessionRecord) Post {
	text := fmt.Sprintf("⭐️ New video release 📺: %s\n%s\n\n📺 Watch the video on YouTube: %s\n\n%s",
		rec.Title, rec.TeaserText, WatchURL(rec.PlatformVideoID), rec.LongText)
	return Post{
		Code:            rec.Code,
		Text:            text,
		Title:           rec.Title,
		TeaserText:      rec.TeaserText,
		ShortText:       rec.ShortText,
		LongText:        rec.LongText,
		PlatformVideoID: rec.PlatformVideoID,
	}
}

// NewMail renders the speaker notification for rec, addressed to every
// speaker with an email address.
func NewMail(rec *records.SessionRecord, teamSignature string) Mail {
	recipients := make([]email.Recipient, 0, len(rec.Speakers))
	for _, s := range rec.Speakers {
		if s.Email == "" {
			continue
		}
		recipients = append(recipients, email.Recipient{Name: s.Name, Email: s.Email})
	}
	text := fmt.Sprintf("Hi %s,\nYour talk %s is now online. 📺🎉\n\n📺 Watch the video on YouTube: %s\n\n%s\n\nAll the best,\n%s",
		rec.SpeakerNames(), rec.Title, ShortURL(rec.PlatformVideoID), rec.ShortText, teamSignature)
	return Mail{
		Code:       rec.Code,
		Subject:    fmt.Sprintf("Your talk %s is now online.", rec.Title),
		Text:       text,
		Recipients: recipients,
	}
}

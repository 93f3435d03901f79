package records

import "time"

// Platform defaults applied to every prepared video.
const (
	DefaultCategoryID = "28"
	DefaultLanguage   = "en"
	DefaultPrivacy    = PrivacyUnlisted
	DefaultLicense    = "youtube"
)

// Privacy states reported by the video platform.
const (
	PrivacyPublic   = "public"
	PrivacyPrivate  = "private"
	PrivacyUnlisted = "unlisted"
)

// Snippet is the descriptive part of a video.
type Snippet struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	CategoryID           string   `json:"categoryId"`
	DefaultLanguage      string   `json:"defaultLanguage"`
	DefaultAudioLanguage string   `json:"defaultAudioLanguage"`
	Tags                 []string `json:"tags,omitempty"`
}

// Status is the visibility part of a video.
type Status struct {
	PrivacyStatus string     `json:"privacyStatus"`
	License       string     `json:"license"`
	Embeddable    bool       `json:"embeddable"`
	PublishAt     *time.Time `json:"publishAt,omitempty"`
}

// RecordingDetails carries the recording date.
type RecordingDetails struct {
	RecordingDate string `json:"recordingDate,omitempty"`
}

// VideoResource mirrors the video platform's resource shape. The ID never
// changes once assigned.
type VideoResource struct {
	ID               string           `json:"id"`
	Snippet          Snippet          `json:"snippet"`
	Status           Status           `json:"status"`
	RecordingDetails RecordingDetails `json:"recordingDetails"`
}

// NewVideoResource returns a resource for id carrying the platform defaults.
func NewVideoResource(id string) VideoResource {
	return VideoResource{
		ID: id,
		Snippet: Snippet{
			CategoryID:           DefaultCategoryID,
			DefaultLanguage:      DefaultLanguage,
			DefaultAudioLanguage: DefaultLanguage,
		},
		Status: Status{
			PrivacyStatus: DefaultPrivacy,
			License:       DefaultLicense,
			Embeddable:    true,
		},
	}
}

// SetRecordingDate stores d in the platform's timestamp form.
func (v *VideoResource) SetRecordingDate(d Date) {
	if d.IsZero() {
		v.RecordingDetails.RecordingDate = ""
		return
	}
	v.RecordingDetails.RecordingDate = d.UTC().Format(time.RFC3339)
}

// DueBy reports whether the scheduled publish instant is at or before now.
func (v *VideoResource) DueBy(now time.Time) bool {
	return v.Status.PublishAt != nil && !v.Status.PublishAt.After(now)
}

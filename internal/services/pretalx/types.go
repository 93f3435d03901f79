package pretalx

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Text is a localized string. The API returns either a plain string or a map
// of language codes; English is preferred.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*t = Text(plain)
		return nil
	}
	var localized map[string]string
	if err := json.Unmarshal(data, &localized); err != nil {
		return err
	}
	if en, ok := localized["en"]; ok {
		*t = Text(en)
		return nil
	}
	langs := make([]string, 0, len(localized))
	for lang := range localized {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	if len(langs) > 0 {
		*t = Text(localized[langs[0]])
	}
	return nil
}

func (t Text) String() string { return string(t) }

// QuestionRef identifies the question an answer belongs to. Expanded
// responses carry an object, compact ones the bare id.
type QuestionRef struct {
	ID int `json:"id"`
}

func (q *QuestionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		q.ID = obj.ID
		return nil
	}
	return json.Unmarshal(data, &q.ID)
}

// Answer is a response to a custom question.
type Answer struct {
	Question QuestionRef `json:"question"`
	Answer   string      `json:"answer"`
	Person   string      `json:"person,omitempty"`
}

// Slot is the scheduled time of a submission.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Room  Text   `json:"room"`
}

// SpeakerRef is the speaker summary embedded in a submission.
type SpeakerRef struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Biography string `json:"biography"`
	Email     string `json:"email"`
}

// Submission is a confirmed talk.
type Submission struct {
	Code        string          `json:"code"`
	Title       string          `json:"title"`
	Abstract    string          `json:"abstract"`
	Description string          `json:"description"`
	State       string          `json:"state"`
	Track       Text            `json:"track"`
	Slot        *Slot           `json:"slot"`
	DoNotRecord bool            `json:"do_not_record"`
	Speakers    []SpeakerRef    `json:"speakers"`
	Answers     []Answer        `json:"answers"`
	Raw         json.RawMessage `json:"-"`
}

// Speaker is a speaker profile with their answers.
type Speaker struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Biography string          `json:"biography"`
	Email     string          `json:"email"`
	Answers   []Answer        `json:"answers"`
	Raw       json.RawMessage `json:"-"`
}

// AnswerTo returns the answer to question id.
func AnswerTo(answers []Answer, id int) (string, bool) {
	for _, a := range answers {
		if a.Question.ID == id {
			return a.Answer, true
		}
	}
	return "", false
}

package metadata

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"confops/internal/logging"
	"confops/internal/records"
	"confops/internal/textutil"
)

//go:embed description.tmpl
var defaultDescriptionTemplate string

const dateLayout = "02.01.2006"

// TemplateArgsFunc adjusts the description template arguments for one
// record. Values placed in args["extra"] (a map[string]any) are available to
// templates as .extra.
type TemplateArgsFunc func(rec *records.SessionRecord, args map[string]any)

// ChannelFlags returns a TemplateArgsFunc setting extra.<name> to true for
// the record's channel and false for every other listed channel.
func ChannelFlags(names ...string) TemplateArgsFunc {
	return func(rec *records.SessionRecord, args map[string]any) {
		extra, _ := args["extra"].(map[string]any)
		if extra == nil {
			extra = map[string]any{}
			args["extra"] = extra
		}
		for _, name := range names {
			extra[name] = rec.Channel == name
		}
	}
}

// LoadTemplate parses the description template at path, or the built-in one
// when path is empty.
func LoadTemplate(path string) (*template.Template, error) {
	text := defaultDescriptionTemplate
	name := "description"
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read description template: %w", err)
		}
		text = string(data)
		name = path
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse description template: %w", err)
	}
	return tmpl, nil
}

// SessionLink returns <base>/<code>/.
func SessionLink(base, code string) string {
	return strings.TrimRight(base, "/") + "/" + code + "/"
}

func (p *Preparer) templateArgs(rec *records.SessionRecord, body string) map[string]any {
	date := ""
	if !rec.RecordedDate.IsZero() {
		date = rec.RecordedDate.Format(dateLayout)
	}
	args := map[string]any{
		"date":         date,
		"session_link": SessionLink(p.linkBase, rec.Code),
		"teaser_text":  rec.TeaserText,
		"speakers":     rec.SpeakerNames(),
		"description":  body,
		"tag":          textutil.Slug(rec.Track),
		"channel":      rec.Channel,
		"event":        p.eventName,
		"extra":        map[string]any{},
	}
	if p.argsFunc != nil {
		p.argsFunc(rec, args)
	}
	return args
}

func (p *Preparer) render(rec *records.SessionRecord, body string) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, p.templateArgs(rec, body)); err != nil {
		return "", fmt.Errorf("render description: %w", err)
	}
	return textutil.NFC(StripDisallowed(strings.TrimSpace(buf.String()))), nil
}

// DescriptionFor renders the platform description, trying the long, then the
// short, then an empty body until the text fits the configured limit. If even
// the empty body does not fit, the error is logged and the over-long text is
// returned unchanged.
func (p *Preparer) DescriptionFor(rec *records.SessionRecord) (string, error) {
	var text string
	for _, body := range []string{rec.LongText, rec.ShortText, ""} {
		var err error
		text, err = p.render(rec, body)
		if err != nil {
			return "", err
		}
		if textutil.RuneLen(text) <= p.maxDescription {
			return text, nil
		}
		p.logger.Debug("description over limit, trying shorter body",
			logging.String(logging.FieldSessionCode, rec.Code),
			logging.Int("length", textutil.RuneLen(text)),
			logging.Int("limit", p.maxDescription),
		)
	}
	logging.ErrorWithContext(p.logger, "description exceeds platform limit even without body", "description_too_long",
		logging.String(logging.FieldSessionCode, rec.Code),
		logging.Int("length", textutil.RuneLen(text)),
		logging.Int("limit", p.maxDescription),
		logging.String(logging.FieldErrorHint, "shorten the description template"),
	)
	return text, nil
}

package metadata

import (
	"strings"

	"confops/internal/textutil"
)

// MaxTitleLength is the platform's title limit in characters.
const MaxTitleLength = 100

const ellipsis = "…"

var disallowed = strings.NewReplacer("<", "", ">", "")

// StripDisallowed removes characters the platform rejects in titles and
// descriptions.
func StripDisallowed(s string) string {
	return disallowed.Replace(s)
}

// TitleFor derives the platform title. An over-long title is cut to 99
// characters plus an ellipsis; otherwise the bracketed tag is appended when
// the result still fits; otherwise the title is used as is.
func TitleFor(title, tag string) string {
	title = textutil.NFC(StripDisallowed(strings.TrimSpace(title)))
	if textutil.RuneLen(title) > MaxTitleLength {
		return textutil.TruncateRunes(title, MaxTitleLength-1) + ellipsis
	}
	tag = textutil.NFC(StripDisallowed(strings.TrimSpace(tag)))
	if tag == "" {
		return title
	}
	suffix := " [" + tag + "]"
	if strings.HasSuffix(title, suffix) {
		return title
	}
	if tagged := title + suffix; textutil.RuneLen(tagged) <= MaxTitleLength {
		return tagged
	}
	return title
}

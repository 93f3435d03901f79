// Package social holds the provider-neutral shape of an announcement post.
package social

import (
	"context"
	"encoding/json"
)

// Post is one announcement. Link points at the released video; Title and
// Description describe it for providers that render link previews.
type Post struct {
	Text        string
	Link        string
	Title       string
	Description string
}

// Poster publishes a post and returns the provider's response document.
type Poster interface {
	CreatePost(ctx context.Context, post Post) (json.RawMessage, error)
}

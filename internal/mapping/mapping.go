// Package mapping builds and loads the derived lookup tables the release
// workflow runs on: session code to channel, session code to platform video
// id, and the inverse of the latter. Tables are built explicitly and saved as
// JSON; later steps load them once into plain maps.
package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"confops/internal/fileutil"
	"confops/internal/records"
	"confops/internal/services"
	"confops/internal/services/youtube"
)

// CodeLength is the length of a session code.
const CodeLength = 6

// File names below the work directory.
const (
	ChannelsFile = "channel_map.json"
	VideoIDsFile = "video_id_map.json"
)

// Tables holds the loaded mappings.
type Tables struct {
	Channels map[string]string
	VideoIDs map[string]string
}

// Channel returns the channel assigned to code.
func (t Tables) Channel(code string) (string, bool) {
	v, ok := t.Channels[code]
	return v, ok && v != ""
}

// VideoID returns the platform video id for code.
func (t Tables) VideoID(code string) (string, bool) {
	v, ok := t.VideoIDs[code]
	return v, ok && v != ""
}

// CodeForVideo returns the session code for a platform video id.
func (t Tables) CodeForVideo(videoID string) (string, bool) {
	v, ok := Inverse(t.VideoIDs)[videoID]
	return v, ok
}

// CodeFromTitle extracts the session code uploads carry as a title prefix.
func CodeFromTitle(title string) (string, bool) {
	title = strings.TrimSpace(title)
	if len(title) < CodeLength {
		return "", false
	}
	return title[:CodeLength], true
}

// BuildVideoIDs maps session codes to video ids from playlist listings.
func BuildVideoIDs(items []youtube.PlaylistItem) map[string]string {
	out := make(map[string]string, len(items))
	for _, item := range items {
		code, ok := CodeFromTitle(item.Title)
		if !ok || item.VideoID == "" {
			continue
		}
		out[code] = item.VideoID
	}
	return out
}

// BuildChannels assigns every session a channel. An entry in overrides wins;
// otherwise the first trackToChannel key (sorted) found case-insensitively in
// the session track decides. Sessions matching neither are returned as
// unassigned.
func BuildChannels(recs []*records.SessionRecord, overrides, trackToChannel map[string]string) (map[string]string, []string) {
	snippets := make([]string, 0, len(trackToChannel))
	for snippet := range trackToChannel {
		snippets = append(snippets, snippet)
	}
	sort.Strings(snippets)

	out := make(map[string]string, len(recs))
	var unassigned []string
	for _, rec := range recs {
		if rec == nil || rec.Code == "" {
			continue
		}
		if channel, ok := overrides[rec.Code]; ok && channel != "" {
			out[rec.Code] = channel
			continue
		}
		track := strings.ToLower(rec.Track)
		matched := false
		for _, snippet := range snippets {
			if snippet != "" && strings.Contains(track, strings.ToLower(snippet)) {
				out[rec.Code] = trackToChannel[snippet]
				matched = true
				break
			}
		}
		if !matched {
			unassigned = append(unassigned, rec.Code)
		}
	}
	sort.Strings(unassigned)
	return out, unassigned
}

// Inverse swaps keys and values.
func Inverse(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Save writes a mapping as indented JSON.
func Save(path string, m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// Load reads a mapping saved by Save.
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "mapping", "load",
				fmt.Sprintf("%s missing; run mapping build", filepath.Base(path)), err)
		}
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, services.Wrap(services.ErrValidation, "mapping", "load", "malformed "+filepath.Base(path), err)
	}
	return out, nil
}

// LoadTables reads both mappings from dir.
func LoadTables(dir string) (Tables, error) {
	channels, err := Load(filepath.Join(dir, ChannelsFile))
	if err != nil {
		return Tables{}, err
	}
	videoIDs, err := Load(filepath.Join(dir, VideoIDsFile))
	if err != nil {
		return Tables{}, err
	}
	return Tables{Channels: channels, VideoIDs: videoIDs}, nil
}

// SaveTables writes both mappings into dir.
func SaveTables(dir string, t Tables) error {
	if err := Save(filepath.Join(dir, ChannelsFile), t.Channels); err != nil {
		return err
	}
	return Save(filepath.Join(dir, VideoIDsFile), t.VideoIDs)
}

// PlaylistLister lists playlist items on the video platform.
type PlaylistLister interface {
	PlaylistItems(ctx context.Context, playlistID string) ([]youtube.PlaylistItem, error)
}

// FetchPlaylists lists each channel playlist, caching the listing as
// youtube_<channel>_playlist.json in dir, and returns all items.
func FetchPlaylists(ctx context.Context, lister PlaylistLister, playlists map[string]string, dir string) ([]youtube.PlaylistItem, error) {
	names := make([]string, 0, len(playlists))
	for name := range playlists {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []youtube.PlaylistItem
	for _, name := range names {
		items, err := lister.PlaylistItems(ctx, playlists[name])
		if err != nil {
			return nil, fmt.Errorf("list playlist for channel %s: %w", name, err)
		}
		data, err := json.MarshalIndent(items, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("encode playlist %s: %w", name, err)
		}
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, PlaylistCacheName(name)), data, 0o644); err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// PlaylistCacheName is the cache file name for a channel listing.
func PlaylistCacheName(channel string) string {
	return "youtube_" + channel + "_playlist.json"
}

// Package format turns the raw rendition metadata reported by the extraction
// engine into the deduplicated, ranked list of download options that Selene
// offers to clients.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hbomb79/Selene/internal/engine"
)

const (
	// preferredContainer wins the tie-break between raw formats that share
	// a height.
	preferredContainer = "mp4"

	// audioSelector asks the engine for the best available audio-only
	// stream, falling back to the best muxed stream.
	audioSelector = "bestaudio/best"

	// bestSelector asks the engine to compose the best video and audio
	// streams available.
	bestSelector = "bestvideo+bestaudio/best"
)

// Descriptor is one downloadable rendition offered to the client. The
// selector is an opaque string consumed by the extraction engine; it may
// request a video+audio merge rather than referencing a single stream, and
// the engine re-resolves it at download time.
type Descriptor struct {
	Label    string `json:"label"`
	Quality  string `json:"quality"`
	Ext      string `json:"ext"`
	Selector string `json:"format_id"`
	Filesize *int64 `json:"filesize"`
}

// Resolve produces the client-facing format list for the metadata provided:
// a synthetic audio-only entry, a synthetic best-quality entry, and then one
// entry per distinct video height in ascending order. Raw formats with no
// playable video are excluded, and at most one descriptor exists per
// distinct quality tag.
func Resolve(meta *engine.Metadata) []Descriptor {
	defaultExt := meta.Ext
	if defaultExt == "" {
		defaultExt = preferredContainer
	}

	descriptors := []Descriptor{
		{
			Label:    "Audio (MP3/M4A)",
			Quality:  "audio",
			Ext:      "mp3",
			Selector: audioSelector,
		},
		{
			Label:    fmt.Sprintf("Best Quality (%s)", defaultExt),
			Quality:  "best",
			Ext:      defaultExt,
			Selector: bestSelector,
		},
	}

	byHeight := make(map[int]engine.RawFormat)
	for _, raw := range meta.Formats {
		if raw.Height == 0 || raw.VCodec == "none" {
			continue
		}

		current, seen := byHeight[raw.Height]
		if !seen || better(raw, current) {
			byHeight[raw.Height] = raw
		}
	}

	heights := make([]int, 0, len(byHeight))
	for height := range byHeight {
		heights = append(heights, height)
	}
	sort.Ints(heights)

	for _, height := range heights {
		raw := byHeight[height]
		descriptors = append(descriptors, Descriptor{
			Label:    fmt.Sprintf("%dp (%s)", height, strings.ToUpper(raw.Ext)),
			Quality:  fmt.Sprintf("%dp", height),
			Ext:      raw.Ext,
			Selector: fmt.Sprintf("bestvideo[height=%d]+bestaudio/best[height=%d]", height, height),
			Filesize: filesizeOf(raw),
		})
	}

	return descriptors
}

// Thumbnail picks the display thumbnail for the metadata provided: the
// engine's default if one is set, otherwise the final (highest resolution)
// entry of the thumbnail list.
func Thumbnail(meta *engine.Metadata) string {
	if meta.Thumbnail != "" {
		return meta.Thumbnail
	}

	if len(meta.Thumbnails) > 0 {
		return meta.Thumbnails[len(meta.Thumbnails)-1].URL
	}

	return ""
}

// better reports whether the candidate should replace the incumbent raw
// format for a given height: the preferred container always wins, and the
// higher reported bitrate breaks any remaining tie. The outcome is
// deliberately independent of the order the engine reported the formats in.
func better(candidate engine.RawFormat, current engine.RawFormat) bool {
	candidatePreferred := candidate.Ext == preferredContainer
	currentPreferred := current.Ext == preferredContainer
	if candidatePreferred != currentPreferred {
		return candidatePreferred
	}

	return candidate.TBR > current.TBR
}

func filesizeOf(raw engine.RawFormat) *int64 {
	if raw.Filesize != nil {
		return raw.Filesize
	}

	return raw.FilesizeApprox
}

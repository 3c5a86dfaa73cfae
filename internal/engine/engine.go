// Package engine wraps the external extraction engine (yt-dlp) that Selene
// relies on for probing media URLs and performing the actual network
// transfer/transcode. Everything beyond this package treats the engine as an
// opaque collaborator: it accepts a configuration, runs for a long time, and
// reports progress through a callback.
package engine

import "context"

type (
	// Metadata is the engine's view of a single media URL, decoded from the
	// info JSON it produces when probing.
	Metadata struct {
		Title      string      `json:"title"`
		Duration   float64     `json:"duration"`
		Ext        string      `json:"ext"`
		Thumbnail  string      `json:"thumbnail"`
		Thumbnails []Thumbnail `json:"thumbnails"`
		WebpageURL string      `json:"webpage_url"`
		Formats    []RawFormat `json:"formats"`
	}

	Thumbnail struct {
		URL string `json:"url"`
	}

	// RawFormat is one rendition as reported by the engine. Filesize fields
	// are pointers as the engine frequently omits them.
	RawFormat struct {
		ID             string  `json:"format_id"`
		Ext            string  `json:"ext"`
		Height         int     `json:"height"`
		VCodec         string  `json:"vcodec"`
		TBR            float64 `json:"tbr"`
		Filesize       *int64  `json:"filesize"`
		FilesizeApprox *int64  `json:"filesize_approx"`
	}

	// ClipRange expresses a download-range request in whole seconds. The
	// engine is additionally instructed to force a keyframe at the cut
	// boundaries so the clip is frame-accurate.
	ClipRange struct {
		StartSeconds int
		EndSeconds   int
	}

	// DownloadOptions is the per-job engine configuration composed by the
	// download service.
	DownloadOptions struct {
		URL            string
		FormatSelector string

		// OutputTemplate is the full engine output template for the job,
		// including the job-unique filename prefix (e.g. ".../temp_<id>.%(ext)s").
		OutputTemplate string

		// FFmpegDir optionally points the engine at a locally bundled
		// ffmpeg binary directory instead of whatever is on the PATH.
		FFmpegDir string

		Clip *ClipRange
	}

	ProgressEventKind int

	// ProgressEvent is a single progress signal from the engine. The raw
	// line is carried verbatim; interpreting it (e.g. extracting a percent
	// value) is deliberately left to the consumer so the engine's output
	// format can change without touching this package's callers' state
	// machines.
	ProgressEvent struct {
		Kind ProgressEventKind
		Line string
	}

	// ProgressFunc receives progress events synchronously from within the
	// blocking Download call. Implementations must not block significantly.
	ProgressFunc func(ProgressEvent)

	// Engine is the boundary consumed by the rest of Selene.
	Engine interface {
		// Probe queries the engine for the metadata of the given URL without
		// downloading anything. Failures are reported as *ExtractionError.
		Probe(ctx context.Context, url string) (*Metadata, error)

		// Download performs the transfer/transcode described by the options,
		// blocking until the engine exits. Failures are reported as
		// *DownloadError.
		Download(ctx context.Context, opts DownloadOptions, onProgress ProgressFunc) error
	}
)

const (
	// ProgressTransferring events carry a formatted progress line for an
	// in-flight transfer.
	ProgressTransferring ProgressEventKind = iota

	// ProgressFinished indicates the transfer has concluded and the engine
	// may still be post-processing (muxing/clipping) the output.
	ProgressFinished
)

// ExtractionError indicates the engine could not probe/resolve a URL. The
// message is surfaced to clients verbatim.
type ExtractionError struct {
	Message string
}

func (err *ExtractionError) Error() string { return err.Message }

// DownloadError indicates the engine failed part-way through a job.
type DownloadError struct {
	Message string
}

func (err *DownloadError) Error() string { return err.Message }

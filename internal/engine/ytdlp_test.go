package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ClassifyProgressLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		summary      string
		line         string
		expectedKind ProgressEventKind
		ignored      bool
	}{
		{
			summary:      "in-flight transfer line",
			line:         "[download]  42.3% of 10.00MiB at 1.00MiB/s ETA 00:05",
			expectedKind: ProgressTransferring,
		},
		{
			summary:      "concluding summary line",
			line:         "[download] 100% of 10.00MiB in 00:00:12 at 850.21KiB/s",
			expectedKind: ProgressFinished,
		},
		{
			summary:      "100% line still mid-transfer",
			line:         "[download] 100.0% of 10.00MiB at 2.00MiB/s ETA 00:00",
			expectedKind: ProgressTransferring,
		},
		{
			summary: "destination chatter is ignored",
			line:    "[download] Destination: downloads/temp_abc.f137.mp4",
			ignored: true,
		},
		{
			summary:      "merger output signals post-processing",
			line:         `[Merger] Merging formats into "downloads/temp_abc.mp4"`,
			expectedKind: ProgressFinished,
		},
		{
			summary:      "audio extraction signals post-processing",
			line:         "[ExtractAudio] Destination: downloads/temp_abc.mp3",
			expectedKind: ProgressFinished,
		},
		{
			summary: "unrelated output is ignored",
			line:    "[youtube] abc: Downloading webpage",
			ignored: true,
		},
		{
			summary: "blank line is ignored",
			line:    "   ",
			ignored: true,
		},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			t.Parallel()

			event, ok := classifyProgressLine(test.line)
			if test.ignored {
				assert.False(t, ok)
				return
			}

			require.True(t, ok)
			assert.Equal(t, test.expectedKind, event.Kind)
			assert.NotEmpty(t, event.Line)
		})
	}
}

func Test_ExtractEngineError(t *testing.T) {
	t.Parallel()

	procErr := errors.New("exit status 1")

	tests := []struct {
		summary  string
		stderr   string
		expected string
	}{
		{
			summary:  "ERROR line is preferred and unprefixed",
			stderr:   "WARNING: unable to fetch thumbnail\nERROR: Video unavailable\n",
			expected: "Video unavailable",
		},
		{
			summary:  "last non-empty line when no ERROR prefix present",
			stderr:   "something odd happened\n\n",
			expected: "something odd happened",
		},
		{
			summary:  "empty stderr falls back to the process error",
			stderr:   "",
			expected: "exit status 1",
		},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, extractEngineError(test.stderr, procErr))
		})
	}
}

func Test_MetadataDecodesEngineInfoJSON(t *testing.T) {
	t.Parallel()

	raw := `{
		"title": "A Talk",
		"duration": 613.2,
		"ext": "mp4",
		"webpage_url": "https://example.com/watch?v=abc",
		"thumbnail": "https://example.com/thumb.jpg",
		"thumbnails": [{"url": "https://example.com/small.jpg"}],
		"formats": [
			{"format_id": "140", "ext": "m4a", "vcodec": "none", "tbr": 129.5, "filesize": 9000000},
			{"format_id": "22", "ext": "mp4", "vcodec": "avc1.64001F", "height": 720, "tbr": 1200.1, "filesize_approx": 91000000}
		]
	}`

	meta := &Metadata{}
	require.NoError(t, json.Unmarshal([]byte(raw), meta))

	assert.Equal(t, "A Talk", meta.Title)
	assert.Equal(t, 613.2, meta.Duration)
	assert.Equal(t, "https://example.com/watch?v=abc", meta.WebpageURL)
	require.Len(t, meta.Formats, 2)

	audio := meta.Formats[0]
	assert.Equal(t, "none", audio.VCodec)
	assert.Zero(t, audio.Height)
	require.NotNil(t, audio.Filesize)
	assert.EqualValues(t, 9000000, *audio.Filesize)
	assert.Nil(t, audio.FilesizeApprox)

	video := meta.Formats[1]
	assert.Equal(t, 720, video.Height)
	assert.Nil(t, video.Filesize)
	require.NotNil(t, video.FilesizeApprox)
	assert.EqualValues(t, 91000000, *video.FilesizeApprox)
}

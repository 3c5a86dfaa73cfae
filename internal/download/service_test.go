package download_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/download"
	"github.com/hbomb79/Selene/internal/engine"
	"github.com/hbomb79/Selene/internal/event"
	"github.com/hbomb79/Selene/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetMinLoggingLevel(logger.FATAL.Level())
	os.Exit(m.Run())
}

// stubEngine implements engine.Engine with caller-provided behaviour,
// recording the options each download was invoked with.
type stubEngine struct {
	mutex     sync.Mutex
	downloads []engine.DownloadOptions

	probeMeta *engine.Metadata
	probeErr  error
	download  func(opts engine.DownloadOptions, onProgress engine.ProgressFunc) error
}

func (stub *stubEngine) Probe(_ context.Context, _ string) (*engine.Metadata, error) {
	return stub.probeMeta, stub.probeErr
}

func (stub *stubEngine) Download(_ context.Context, opts engine.DownloadOptions, onProgress engine.ProgressFunc) error {
	stub.mutex.Lock()
	stub.downloads = append(stub.downloads, opts)
	stub.mutex.Unlock()

	if stub.download != nil {
		return stub.download(opts, onProgress)
	}

	return nil
}

func (stub *stubEngine) lastDownload(t *testing.T) engine.DownloadOptions {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()

	require.NotEmpty(t, stub.downloads, "expected the engine to have been invoked")
	return stub.downloads[len(stub.downloads)-1]
}

// writeArtifact mimics the engine materialising its output file by expanding
// the %(ext)s placeholder in the output template.
func writeArtifact(t *testing.T, template string, ext string) {
	path := strings.Replace(template, "%(ext)s", ext, 1)
	require.NoError(t, os.WriteFile(path, []byte("media bytes"), 0o644))
}

func newTestService(t *testing.T, stub *stubEngine) *download.Service {
	service, err := download.New(download.Config{ArtifactDir: t.TempDir()}, stub, event.New())
	require.NoError(t, err)

	return service
}

func awaitStatus(t *testing.T, service *download.Service, id uuid.UUID, status download.JobStatus) download.Job {
	var job download.Job
	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		snapshot, ok := service.Job(id)
		assert.True(c, ok)
		assert.Equal(c, status, snapshot.Status)

		job = snapshot
	}, 2*time.Second, 10*time.Millisecond)

	return job
}

func Test_StartDownload_SuccessPath(t *testing.T) {
	t.Parallel()

	stub := &stubEngine{
		download: func(opts engine.DownloadOptions, onProgress engine.ProgressFunc) error {
			onProgress(engine.ProgressEvent{Kind: engine.ProgressTransferring, Line: "[download]  55.5% of 10.00MiB"})
			onProgress(engine.ProgressEvent{Kind: engine.ProgressFinished, Line: "[download] 100% of 10.00MiB in 00:00:04"})
			writeArtifact(t, opts.OutputTemplate, "mp4")
			return nil
		},
	}

	service := newTestService(t, stub)
	id := service.StartDownload("https://example.com/v", "bestvideo+bestaudio/best", "", "")

	job := awaitStatus(t, service, id, download.StatusCompleted)
	assert.Equal(t, "temp_"+id.String()+".mp4", job.Filename)
	assert.Equal(t, 55.5, job.Progress)
	assert.Empty(t, job.Error)

	opts := stub.lastDownload(t)
	assert.Equal(t, "bestvideo+bestaudio/best", opts.FormatSelector)
	assert.Nil(t, opts.Clip)
	assert.True(t, strings.HasSuffix(opts.OutputTemplate, "temp_"+id.String()+".%(ext)s"))
}

func Test_StartDownload_EngineFailure(t *testing.T) {
	t.Parallel()

	stub := &stubEngine{
		download: func(engine.DownloadOptions, engine.ProgressFunc) error {
			return &engine.DownloadError{Message: "Unsupported URL: https://example.com/v"}
		},
	}

	service := newTestService(t, stub)
	id := service.StartDownload("https://example.com/v", "best", "", "")

	job := awaitStatus(t, service, id, download.StatusError)
	assert.Equal(t, "Unsupported URL: https://example.com/v", job.Error)
	assert.Empty(t, job.Filename)
}

func Test_StartDownload_ArtifactMissing(t *testing.T) {
	t.Parallel()

	// Engine claims success but never writes an output file.
	service := newTestService(t, &stubEngine{})
	id := service.StartDownload("https://example.com/v", "best", "", "")

	job := awaitStatus(t, service, id, download.StatusError)
	assert.Equal(t, "output file not found", job.Error)
}

func Test_StartDownload_ClipRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		summary   string
		startTime string
		endTime   string
		expected  *engine.ClipRange
	}{
		{summary: "both bounds parse", startTime: "00:10", endTime: "01:00", expected: &engine.ClipRange{StartSeconds: 10, EndSeconds: 60}},
		{summary: "missing end bound drops the clip", startTime: "00:10", endTime: ""},
		{summary: "malformed bound silently degrades to full download", startTime: "ten seconds", endTime: "01:00"},
		{summary: "inverted range is passed through unmodified", startTime: "02:00", endTime: "01:00", expected: &engine.ClipRange{StartSeconds: 120, EndSeconds: 60}},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			t.Parallel()

			stub := &stubEngine{
				download: func(opts engine.DownloadOptions, _ engine.ProgressFunc) error {
					writeArtifact(t, opts.OutputTemplate, "mp4")
					return nil
				},
			}

			service := newTestService(t, stub)
			id := service.StartDownload("https://example.com/v", "best", test.startTime, test.endTime)
			awaitStatus(t, service, id, download.StatusCompleted)

			assert.Equal(t, test.expected, stub.lastDownload(t).Clip)
		})
	}
}

func Test_ConsumeArtifact_ExactlyOnce(t *testing.T) {
	t.Parallel()

	stub := &stubEngine{
		download: func(opts engine.DownloadOptions, _ engine.ProgressFunc) error {
			writeArtifact(t, opts.OutputTemplate, "webm")
			return nil
		},
	}

	service := newTestService(t, stub)
	id := service.StartDownload("https://example.com/v", "best", "", "")
	awaitStatus(t, service, id, download.StatusCompleted)

	path, downloadName, err := service.ConsumeArtifact(id)
	require.NoError(t, err)
	assert.Equal(t, "video_dl_"+id.String()+".webm", downloadName)
	assert.FileExists(t, path)

	// The delivery layer deletes the file once transmission concludes.
	require.NoError(t, os.Remove(path))

	_, _, err = service.ConsumeArtifact(id)
	assert.ErrorIs(t, err, download.ErrArtifactMissing)

	job, _ := service.Job(id)
	assert.Equal(t, download.StatusCompleted, job.Status, "consumption must not rewrite the job record")
}

func Test_ConsumeArtifact_Preconditions(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	stub := &stubEngine{
		download: func(engine.DownloadOptions, engine.ProgressFunc) error {
			<-release
			return nil
		},
	}

	service := newTestService(t, stub)

	_, _, err := service.ConsumeArtifact(uuid.New())
	assert.ErrorIs(t, err, download.ErrJobNotFound)

	id := service.StartDownload("https://example.com/v", "best", "", "")
	awaitStatus(t, service, id, download.StatusDownloading)

	_, _, err = service.ConsumeArtifact(id)
	assert.ErrorIs(t, err, download.ErrJobNotReady)

	close(release)
}

func Test_UnknownJobIsNotFound(t *testing.T) {
	t.Parallel()

	service := newTestService(t, &stubEngine{})
	_, ok := service.Job(uuid.New())
	assert.False(t, ok)
}

func Test_New_SweepsStaleArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "temp_0f00ba11.mp4")
	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))

	_, err := download.New(download.Config{ArtifactDir: dir}, &stubEngine{}, event.New())
	require.NoError(t, err)

	assert.NoFileExists(t, stale, "in-progress files from a previous run must be swept")
	assert.FileExists(t, unrelated)
}

func Test_Resolve_PassesEngineMetadataThrough(t *testing.T) {
	t.Parallel()

	stub := &stubEngine{
		probeMeta: &engine.Metadata{
			Title:      "Talk",
			Duration:   61.5,
			Ext:        "mp4",
			WebpageURL: "https://example.com/v",
			Thumbnails: []engine.Thumbnail{{URL: "https://example.com/small.jpg"}, {URL: "https://example.com/big.jpg"}},
			Formats:    []engine.RawFormat{{ID: "22", Ext: "mp4", VCodec: "avc1", Height: 720, TBR: 1200}},
		},
	}

	service := newTestService(t, stub)
	info, err := service.Resolve(context.Background(), "https://example.com/v")
	require.NoError(t, err)

	assert.Equal(t, "Talk", info.Title)
	assert.Equal(t, 61.5, info.Duration)
	assert.Equal(t, "https://example.com/big.jpg", info.Thumbnail)
	assert.Equal(t, "https://example.com/v", info.WebpageURL)
	require.Len(t, info.Formats, 3)
	assert.Equal(t, "audio", info.Formats[0].Quality)
	assert.Equal(t, "best", info.Formats[1].Quality)
	assert.Equal(t, "720p", info.Formats[2].Quality)
}

func Test_Resolve_SurfacesExtractionError(t *testing.T) {
	t.Parallel()

	stub := &stubEngine{probeErr: &engine.ExtractionError{Message: "Video unavailable"}}
	service := newTestService(t, stub)

	_, err := service.Resolve(context.Background(), "https://example.com/gone")

	var extractionErr *engine.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "Video unavailable", extractionErr.Message)
}

package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/engine"
	"github.com/hbomb79/Selene/internal/event"
	"github.com/hbomb79/Selene/internal/format"
	"github.com/hbomb79/Selene/pkg/logger"
)

// artifactPrefix is the filename convention binding an on-disk artifact to
// its job: every engine output for job <id> starts with "temp_<id>".
const artifactPrefix = "temp_"

var (
	ErrJobNotFound     = errors.New("no job found with the id provided")
	ErrJobNotReady     = errors.New("job has not produced a downloadable artifact yet")
	ErrArtifactMissing = errors.New("artifact for this job is no longer present on disk")
)

type (
	Config struct {
		// ArtifactDir is where in-progress and completed artifacts live. It
		// is created on startup if missing, and stale in-progress files from
		// a previous run are swept from it.
		ArtifactDir string `yaml:"artifact_dir" env:"DOWNLOAD_ARTIFACT_DIR" env-default:"downloads"`

		// FFmpegDir optionally points the engine at a locally bundled ffmpeg
		// directory rather than relying on the PATH.
		FFmpegDir string `yaml:"ffmpeg_dir" env:"DOWNLOAD_FFMPEG_DIR"`
	}

	// MediaInfo is the client-facing result of probing a URL.
	MediaInfo struct {
		Title      string              `json:"title"`
		Thumbnail  string              `json:"thumbnail"`
		Duration   float64             `json:"duration"`
		Formats    []format.Descriptor `json:"formats"`
		WebpageURL string              `json:"webpage_url"`
	}

	// Service owns the job registry and drives each download job from
	// submission to a terminal state on its own goroutine. There is no
	// admission control; concurrent jobs are bounded only by host resources.
	Service struct {
		log      logger.Logger
		config   Config
		engine   engine.Engine
		registry *Registry
		eventBus event.EventCoordinator

		ctxMutex sync.Mutex
		ctx      context.Context
	}
)

// New constructs the download service, ensuring the artifact directory
// exists and sweeping any in-progress files left behind by a previous run.
func New(config Config, extractionEngine engine.Engine, eventBus event.EventCoordinator) (*Service, error) {
	if err := os.MkdirAll(config.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", config.ArtifactDir, err)
	}

	service := &Service{
		log:      logger.Get("DownloadService"),
		config:   config,
		engine:   extractionEngine,
		registry: NewRegistry(),
		eventBus: eventBus,
	}
	service.sweepStaleArtifacts()

	return service, nil
}

// Run blocks until the context provided is cancelled. The context also
// becomes the parent for every engine invocation spawned by this service, so
// cancelling it tears down any in-flight engine processes.
func (service *Service) Run(ctx context.Context) error {
	service.ctxMutex.Lock()
	service.ctx = ctx
	service.ctxMutex.Unlock()

	<-ctx.Done()
	return nil
}

// Resolve probes the URL provided and returns its metadata along with the
// ranked list of downloadable formats. Engine failures are returned
// unmodified (*engine.ExtractionError).
func (service *Service) Resolve(ctx context.Context, url string) (*MediaInfo, error) {
	meta, err := service.engine.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	return &MediaInfo{
		Title:      meta.Title,
		Thumbnail:  format.Thumbnail(meta),
		Duration:   meta.Duration,
		Formats:    format.Resolve(meta),
		WebpageURL: meta.WebpageURL,
	}, nil
}

// StartDownload creates a new job for the request provided and dispatches
// its execution on a fresh goroutine, returning the job id immediately. The
// caller never observes the job's outcome directly; it must poll.
func (service *Service) StartDownload(url string, formatSelector string, startTime string, endTime string) uuid.UUID {
	id := service.registry.Create(url)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				service.log.Errorf("Job %s panicked: %v\n", id, r)
				service.failJob(id, fmt.Sprintf("internal failure: %v", r))
			}
		}()

		service.runJob(id, url, formatSelector, startTime, endTime)
	}()

	return id
}

// Job returns a snapshot of the job with the id provided.
func (service *Service) Job(id uuid.UUID) (Job, bool) {
	return service.registry.Get(id)
}

// ConsumeArtifact resolves the on-disk path of a completed job's artifact
// along with the filename to suggest to the client. The caller is expected
// to delete the file once transmission has been attempted; the job record
// itself still reports completed afterwards, making delivery exactly-once.
func (service *Service) ConsumeArtifact(id uuid.UUID) (string, string, error) {
	job, ok := service.registry.Get(id)
	if !ok {
		return "", "", ErrJobNotFound
	}

	if job.Status != StatusCompleted {
		return "", "", ErrJobNotReady
	}

	path := filepath.Join(service.config.ArtifactDir, job.Filename)
	if _, err := os.Stat(path); err != nil {
		return "", "", ErrArtifactMissing
	}

	downloadName := fmt.Sprintf("video_dl_%s%s", id, filepath.Ext(job.Filename))
	return path, downloadName, nil
}

// runJob executes the state machine for a single download: it owns exclusive
// write access to the job record, blocks inside the engine call, and leaves
// the job in a terminal state on every path.
func (service *Service) runJob(id uuid.UUID, url string, formatSelector string, startTime string, endTime string) {
	service.registry.Update(id, func(job *Job) { job.Status = StatusDownloading })
	service.eventBus.Dispatch(event.DownloadUpdateEvent, id)

	opts := engine.DownloadOptions{
		URL:            url,
		FormatSelector: formatSelector,
		OutputTemplate: filepath.Join(service.config.ArtifactDir, artifactPrefix+id.String()+".%(ext)s"),
		FFmpegDir:      service.config.FFmpegDir,
		Clip:           service.clipRange(id, startTime, endTime),
	}

	sink := newProgressSink(service.registry, service.eventBus, id)
	if err := service.engine.Download(service.jobContext(), opts, sink); err != nil {
		service.log.Errorf("Job %s failed: %v\n", id, err)
		service.failJob(id, err.Error())
		return
	}

	filename, ok := service.locateArtifact(id)
	if !ok {
		service.failJob(id, "output file not found")
		return
	}

	service.registry.Update(id, func(job *Job) {
		job.Status = StatusCompleted
		job.Filename = filename
	})
	service.log.Infof("Job %s completed (artifact=%s)\n", id, filename)
	service.eventBus.Dispatch(event.DownloadCompleteEvent, id)
}

// clipRange parses the optional time bounds for a job. Clipping requires
// both bounds; a malformed bound silently degrades to a full download rather
// than failing the job. Inverted ranges are passed through unmodified.
func (service *Service) clipRange(id uuid.UUID, startTime string, endTime string) *engine.ClipRange {
	if startTime == "" || endTime == "" {
		return nil
	}

	start, err := ParseTimestamp(startTime)
	if err != nil {
		service.log.Warnf("Job %s ignoring clip request: %v\n", id, err)
		return nil
	}

	end, err := ParseTimestamp(endTime)
	if err != nil {
		service.log.Warnf("Job %s ignoring clip request: %v\n", id, err)
		return nil
	}

	return &engine.ClipRange{StartSeconds: start, EndSeconds: end}
}

func (service *Service) failJob(id uuid.UUID, message string) {
	service.registry.Update(id, func(job *Job) {
		if job.Status.Terminal() {
			return
		}

		job.Status = StatusError
		job.Error = message
	})
	service.eventBus.Dispatch(event.DownloadCompleteEvent, id)
}

// locateArtifact scans the artifact directory for the first file carrying
// this job's filename prefix. The engine decides the final extension (and
// may have remuxed), so the name cannot be predicted up front.
func (service *Service) locateArtifact(id uuid.UUID) (string, bool) {
	entries, err := os.ReadDir(service.config.ArtifactDir)
	if err != nil {
		service.log.Errorf("Failed to scan artifact directory: %v\n", err)
		return "", false
	}

	prefix := artifactPrefix + id.String()
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			return entry.Name(), true
		}
	}

	return "", false
}

// CleanupArtifacts removes every file from the artifact directory, returning
// the number removed. Jobs whose artifact is removed remain completed; a
// subsequent attempt to consume them reports the artifact as missing.
func (service *Service) CleanupArtifacts() (int, error) {
	entries, err := os.ReadDir(service.config.ArtifactDir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan artifact directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(service.config.ArtifactDir, entry.Name())
		if err := os.Remove(path); err != nil {
			service.log.Warnf("Unable to remove artifact %s: %v\n", path, err)
			continue
		}

		removed++
	}

	service.log.Infof("Artifact cleanup removed %d file(s)\n", removed)
	return removed, nil
}

// sweepStaleArtifacts removes in-progress files orphaned by a previous run.
// Jobs do not survive restarts, so nothing can ever claim these again.
func (service *Service) sweepStaleArtifacts() {
	entries, err := os.ReadDir(service.config.ArtifactDir)
	if err != nil {
		service.log.Warnf("Unable to sweep artifact directory: %v\n", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), artifactPrefix) {
			continue
		}

		path := filepath.Join(service.config.ArtifactDir, entry.Name())
		if err := os.Remove(path); err != nil {
			service.log.Warnf("Unable to remove stale artifact %s: %v\n", path, err)
		} else {
			service.log.Debugf("Swept stale artifact %s\n", path)
		}
	}
}

func (service *Service) jobContext() context.Context {
	service.ctxMutex.Lock()
	defer service.ctxMutex.Unlock()

	if service.ctx != nil {
		return service.ctx
	}

	return context.Background()
}

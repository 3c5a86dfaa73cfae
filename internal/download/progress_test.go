package download

import (
	"testing"

	"github.com/hbomb79/Selene/internal/engine"
	"github.com/hbomb79/Selene/internal/event"
	"github.com/stretchr/testify/assert"
)

func transferring(line string) engine.ProgressEvent {
	return engine.ProgressEvent{Kind: engine.ProgressTransferring, Line: line}
}

func finished(line string) engine.ProgressEvent {
	return engine.ProgressEvent{Kind: engine.ProgressFinished, Line: line}
}

func Test_ProgressSink_ExtractsPercentAndMarksDownloading(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id := registry.Create("url")
	sink := newProgressSink(registry, event.New(), id)

	sink(transferring("[download]  42.3% of 10.00MiB at 1.00MiB/s ETA 00:05"))

	job, _ := registry.Get(id)
	assert.Equal(t, StatusDownloading, job.Status)
	assert.Equal(t, 42.3, job.Progress)
}

func Test_ProgressSink_SwallowsMalformedLines(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id := registry.Create("url")
	sink := newProgressSink(registry, event.New(), id)

	sink(transferring("[download]  42.3% of 10.00MiB"))
	sink(transferring("[download] Destination: clip.mp4"))

	job, _ := registry.Get(id)
	assert.Equal(t, 42.3, job.Progress, "a percent-less line must retain the last known progress")
	assert.Equal(t, StatusDownloading, job.Status)
}

func Test_ProgressSink_ProgressNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id := registry.Create("url")
	sink := newProgressSink(registry, event.New(), id)

	// Multi-fragment downloads restart the percentage per fragment; the
	// job-level value must stay monotonic regardless.
	sink(transferring("[download]  80.0% of 5.00MiB"))
	sink(transferring("[download]  10.0% of 5.00MiB"))

	job, _ := registry.Get(id)
	assert.Equal(t, 80.0, job.Progress)
}

func Test_ProgressSink_FinishedFreezesProgress(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id := registry.Create("url")
	sink := newProgressSink(registry, event.New(), id)

	sink(transferring("[download]  97.5% of 10.00MiB"))
	sink(finished("[download] 100% of 10.00MiB in 00:00:12 at 850KiB/s"))

	job, _ := registry.Get(id)
	assert.Equal(t, StatusProcessing, job.Status)
	assert.Equal(t, 97.5, job.Progress, "processing must freeze progress at its last value")

	// Further transfer chatter (e.g. post-processor output) must not drag
	// the job back to downloading.
	sink(transferring("[download]  12.0% of 1.00MiB"))
	job, _ = registry.Get(id)
	assert.Equal(t, StatusProcessing, job.Status)
	assert.Equal(t, 97.5, job.Progress)
}

func Test_ProgressSink_TerminalStatesAreAbsorbing(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	id := registry.Create("url")
	registry.Update(id, func(job *Job) {
		job.Status = StatusError
		job.Error = "engine exploded"
	})

	sink := newProgressSink(registry, event.New(), id)
	sink(transferring("[download]  50.0% of 10.00MiB"))
	sink(finished("[download] 100% of 10.00MiB in 00:00:12"))

	job, _ := registry.Get(id)
	assert.Equal(t, StatusError, job.Status)
	assert.Equal(t, "engine exploded", job.Error)
}

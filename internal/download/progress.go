package download

import (
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/engine"
	"github.com/hbomb79/Selene/internal/event"
)

// percentPattern matches the first decimal percentage inside an engine
// progress line, e.g. "[download]  42.3% of 10.00MiB at 1.00MiB/s".
var percentPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// newProgressSink binds the engine's progress callback to a single job. The
// sink runs synchronously inside the engine's blocking download call, so it
// only ever performs a registry update and an event dispatch.
//
// Malformed or percent-less transfer lines are swallowed and the last known
// progress value retained. Progress never moves backwards; a "finished"
// signal moves the job to processing with progress frozen at its last value.
func newProgressSink(registry *Registry, eventBus event.EventDispatcher, jobID uuid.UUID) engine.ProgressFunc {
	return func(progressEvent engine.ProgressEvent) {
		switch progressEvent.Kind {
		case engine.ProgressTransferring:
			percent, ok := extractPercent(progressEvent.Line)
			if !ok {
				return
			}

			registry.Update(jobID, func(job *Job) {
				if job.Status.Terminal() || job.Status == StatusProcessing {
					return
				}

				job.Status = StatusDownloading
				if percent > job.Progress {
					job.Progress = percent
				}
			})
			eventBus.Dispatch(event.DownloadProgressEvent, jobID)
		case engine.ProgressFinished:
			registry.Update(jobID, func(job *Job) {
				if job.Status.Terminal() {
					return
				}

				job.Status = StatusProcessing
			})
			eventBus.Dispatch(event.DownloadUpdateEvent, jobID)
		}
	}
}

func extractPercent(line string) (float64, bool) {
	match := percentPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}

	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}

	return percent, true
}

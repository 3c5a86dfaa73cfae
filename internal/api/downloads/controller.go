// Package downloads exposes the job orchestration endpoints: probing a URL
// for its available formats, starting an asynchronous download, polling its
// progress and finally collecting the produced artifact.
package downloads

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/download"
	"github.com/hbomb79/Selene/pkg/logger"
	"github.com/labstack/echo/v4"
)

var controllerLogger = logger.Get("DownloadsController")

type (
	InfoRequest struct {
		URL string `json:"url" validate:"required,url"`
	}

	StartRequest struct {
		URL       string `json:"url" validate:"required,url"`
		FormatID  string `json:"format_id" validate:"required"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}

	StartResponse struct {
		JobID uuid.UUID `json:"job_id"`
	}

	// Dto is the poll-path representation of a job.
	Dto struct {
		ID       uuid.UUID          `json:"job_id"`
		Status   download.JobStatus `json:"status"`
		Progress float64            `json:"progress"`
		Filename string             `json:"filename,omitempty"`
		Error    string             `json:"error,omitempty"`
	}

	DownloadService interface {
		Resolve(ctx context.Context, url string) (*download.MediaInfo, error)
		StartDownload(url string, formatSelector string, startTime string, endTime string) uuid.UUID
		Job(id uuid.UUID) (download.Job, bool)
		ConsumeArtifact(id uuid.UUID) (path string, downloadName string, err error)
	}

	Controller struct {
		validate *validator.Validate
		service  DownloadService
	}
)

func NewDto(job download.Job) *Dto {
	return &Dto{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Filename: job.Filename,
		Error:    job.Error,
	}
}

func New(validate *validator.Validate, service DownloadService) *Controller {
	return &Controller{validate: validate, service: service}
}

// SetRoutes accepts the Echo group for the download endpoints and sets the
// routes on them.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.start)
	eg.GET("/:id/", controller.status)
	eg.GET("/:id/file/", controller.serveFile)
}

// SetInfoRoutes mounts the synchronous probe endpoint, which lives on its
// own path rather than under the downloads collection.
func (controller *Controller) SetInfoRoutes(eg *echo.Group) {
	eg.POST("/", controller.info)
}

// info probes the URL provided and returns its metadata and downloadable
// formats. Engine failures surface directly as client errors carrying the
// engine's message.
func (controller *Controller) info(ec echo.Context) error {
	var request InfoRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body illegal")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	info, err := controller.service.Resolve(ec.Request().Context(), request.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ec.JSON(http.StatusOK, info)
}

// start creates a new download job and returns its id immediately; the work
// itself is deferred and must be observed via the status endpoint.
func (controller *Controller) start(ec echo.Context) error {
	var request StartRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body illegal")
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id := controller.service.StartDownload(request.URL, request.FormatID, request.StartTime, request.EndTime)
	return ec.JSON(http.StatusOK, StartResponse{JobID: id})
}

// status uses the 'id' path param from the context and returns a snapshot
// of the matching job.
func (controller *Controller) status(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Job ID is not a valid UUID")
	}

	job, ok := controller.service.Job(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "No job found with that ID")
	}

	return ec.JSON(http.StatusOK, NewDto(job))
}

// serveFile streams a completed job's artifact to the client, deleting the
// underlying file once transmission has been attempted. Delivery is
// exactly-once: a repeat request finds the artifact gone even though the job
// still reports completed.
func (controller *Controller) serveFile(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Job ID is not a valid UUID")
	}

	path, downloadName, err := controller.service.ConsumeArtifact(id)
	switch {
	case errors.Is(err, download.ErrJobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "No job found with that ID")
	case errors.Is(err, download.ErrJobNotReady):
		return echo.NewHTTPError(http.StatusBadRequest, "Job has not completed yet")
	case errors.Is(err, download.ErrArtifactMissing):
		return echo.NewHTTPError(http.StatusGone, "Artifact for this job has already been collected")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	defer func() {
		if err := os.Remove(path); err != nil {
			controllerLogger.Warnf("Failed to remove served artifact %s: %v\n", path, err)
		}
	}()

	return ec.Attachment(path, downloadName)
}

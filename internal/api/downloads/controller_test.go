package downloads_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/api/downloads"
	"github.com/hbomb79/Selene/internal/download"
	"github.com/hbomb79/Selene/internal/engine"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	resolveInfo *download.MediaInfo
	resolveErr  error

	startedWith []string
	startID     uuid.UUID

	jobs map[uuid.UUID]download.Job

	artifactPath string
	artifactName string
	artifactErr  error
}

func (stub *stubService) Resolve(_ context.Context, _ string) (*download.MediaInfo, error) {
	return stub.resolveInfo, stub.resolveErr
}

func (stub *stubService) StartDownload(url string, selector string, startTime string, endTime string) uuid.UUID {
	stub.startedWith = []string{url, selector, startTime, endTime}
	return stub.startID
}

func (stub *stubService) Job(id uuid.UUID) (download.Job, bool) {
	job, ok := stub.jobs[id]
	return job, ok
}

func (stub *stubService) ConsumeArtifact(_ uuid.UUID) (string, string, error) {
	return stub.artifactPath, stub.artifactName, stub.artifactErr
}

func newTestServer(stub *stubService) *echo.Echo {
	ec := echo.New()
	controller := downloads.New(validator.New(), stub)
	controller.SetRoutes(ec.Group("/downloads"))
	controller.SetInfoRoutes(ec.Group("/info"))

	return ec
}

func performJSON(ec *echo.Echo, method string, target string, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		request.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	recorder := httptest.NewRecorder()
	ec.ServeHTTP(recorder, request)
	return recorder
}

func Test_Info(t *testing.T) {
	t.Parallel()

	t.Run("returns resolved metadata", func(t *testing.T) {
		t.Parallel()

		stub := &stubService{resolveInfo: &download.MediaInfo{
			Title:      "A Talk",
			Duration:   12.5,
			Thumbnail:  "https://example.com/t.jpg",
			WebpageURL: "https://example.com/v",
		}}

		recorder := performJSON(newTestServer(stub), http.MethodPost, "/info/", `{"url": "https://example.com/v"}`)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, "A Talk", response["title"])
		assert.Equal(t, "https://example.com/v", response["webpage_url"])
	})

	t.Run("surfaces engine message on failure", func(t *testing.T) {
		t.Parallel()

		stub := &stubService{resolveErr: &engine.ExtractionError{Message: "Video unavailable"}}
		recorder := performJSON(newTestServer(stub), http.MethodPost, "/info/", `{"url": "https://example.com/v"}`)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Video unavailable")
	})

	t.Run("rejects missing url", func(t *testing.T) {
		t.Parallel()

		recorder := performJSON(newTestServer(&stubService{}), http.MethodPost, "/info/", `{}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func Test_Start(t *testing.T) {
	t.Parallel()

	t.Run("returns the new job id immediately", func(t *testing.T) {
		t.Parallel()

		stub := &stubService{startID: uuid.New()}
		recorder := performJSON(newTestServer(stub), http.MethodPost, "/downloads/",
			`{"url": "https://example.com/v", "format_id": "bestvideo+bestaudio/best", "start_time": "00:10", "end_time": "00:20"}`)

		require.Equal(t, http.StatusOK, recorder.Code)

		var response downloads.StartResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, stub.startID, response.JobID)
		assert.Equal(t, []string{"https://example.com/v", "bestvideo+bestaudio/best", "00:10", "00:20"}, stub.startedWith)
	})

	t.Run("rejects missing format selector", func(t *testing.T) {
		t.Parallel()

		stub := &stubService{}
		recorder := performJSON(newTestServer(stub), http.MethodPost, "/downloads/", `{"url": "https://example.com/v"}`)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Nil(t, stub.startedWith, "no job should be started for an invalid request")
	})
}

func Test_Status(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	stub := &stubService{jobs: map[uuid.UUID]download.Job{
		id: {ID: id, Status: download.StatusDownloading, Progress: 42.3},
	}}
	server := newTestServer(stub)

	t.Run("known job", func(t *testing.T) {
		t.Parallel()

		recorder := performJSON(server, http.MethodGet, "/downloads/"+id.String()+"/", "")
		require.Equal(t, http.StatusOK, recorder.Code)

		var response map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, "downloading", response["status"])
		assert.Equal(t, 42.3, response["progress"])
	})

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()

		recorder := performJSON(server, http.MethodGet, "/downloads/"+uuid.NewString()+"/", "")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		t.Parallel()

		recorder := performJSON(server, http.MethodGet, "/downloads/not-a-uuid/", "")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func Test_ServeFile(t *testing.T) {
	t.Parallel()

	t.Run("streams and deletes the artifact", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "temp_x.mp4")
		require.NoError(t, os.WriteFile(path, []byte("media bytes"), 0o644))

		stub := &stubService{artifactPath: path, artifactName: "video_dl_x.mp4"}
		recorder := performJSON(newTestServer(stub), http.MethodGet, "/downloads/"+uuid.NewString()+"/file/", "")

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "media bytes", recorder.Body.String())
		assert.Contains(t, recorder.Header().Get(echo.HeaderContentDisposition), "video_dl_x.mp4")
		assert.NoFileExists(t, path, "the artifact must be deleted once served")
	})

	t.Run("job not complete", func(t *testing.T) {
		t.Parallel()

		stub := &stubService{artifactErr: download.ErrJobNotReady}
		recorder := performJSON(newTestServer(stub), http.MethodGet, "/downloads/"+uuid.NewString()+"/file/", "")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("artifact already collected", func(t *testing.T) {
		t.Parallel()

		stub := &stubService{artifactErr: download.ErrArtifactMissing}
		recorder := performJSON(newTestServer(stub), http.MethodGet, "/downloads/"+uuid.NewString()+"/file/", "")
		assert.Equal(t, http.StatusGone, recorder.Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()

		stub := &stubService{artifactErr: download.ErrJobNotFound}
		recorder := performJSON(newTestServer(stub), http.MethodGet, "/downloads/"+uuid.NewString()+"/file/", "")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

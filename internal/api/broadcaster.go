package api

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/api/downloads"
	"github.com/hbomb79/Selene/internal/http/websocket"
)

const (
	TitleDownloadUpdate         = "DOWNLOAD_UPDATE"
	TitleDownloadProgressUpdate = "DOWNLOAD_PROGRESS_UPDATE"
	TitleDownloadComplete       = "DOWNLOAD_COMPLETE"
)

type (
	DownloadUpdate struct {
		JobID    uuid.UUID      `json:"job_id"`
		Download *downloads.Dto `json:"download"`
	}

	broadcaster struct {
		socketHub       *websocket.SocketHub
		downloadService downloads.DownloadService
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, downloadService downloads.DownloadService) *broadcaster {
	return &broadcaster{socketHub, downloadService}
}

func (hub *broadcaster) BroadcastDownloadUpdate(id uuid.UUID) error {
	return hub.broadcastJob(TitleDownloadUpdate, id)
}

func (hub *broadcaster) BroadcastDownloadProgressUpdate(id uuid.UUID) error {
	return hub.broadcastJob(TitleDownloadProgressUpdate, id)
}

func (hub *broadcaster) BroadcastDownloadComplete(id uuid.UUID) error {
	return hub.broadcastJob(TitleDownloadComplete, id)
}

func (hub *broadcaster) broadcastJob(title string, id uuid.UUID) error {
	job, ok := hub.downloadService.Job(id)
	if !ok {
		return fmt.Errorf("cannot broadcast %s: no job with id %s", title, id)
	}

	update := DownloadUpdate{JobID: id, Download: downloads.NewDto(job)}
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  map[string]any{"arguments": update},
		Type:  websocket.Update,
	})

	return nil
}

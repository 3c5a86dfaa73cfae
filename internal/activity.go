package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/event"
	"github.com/hbomb79/Selene/pkg/logger"
)

const (
	debounceDuration time.Duration = time.Second * 2
	maxTimerDuration time.Duration = time.Second * 5

	rapidEventDebounceDuration time.Duration = time.Millisecond * 500
	rapidEventMaxTimerDuration time.Duration = time.Second * 2
)

type (
	broadcastHandler func(uuid.UUID) error

	broadcaster interface {
		BroadcastDownloadUpdate(uuid.UUID) error
		BroadcastDownloadProgressUpdate(uuid.UUID) error
		BroadcastDownloadComplete(uuid.UUID) error
	}

	eventKey struct {
		ev event.Event
		id uuid.UUID
	}

	// activityService debounces the bus events produced by the download
	// service before pushing them out over the websocket, so a job spamming
	// progress updates does not flood every connected client.
	activityService struct {
		*sync.Mutex
		broadcaster
		eventBus       event.EventHandler
		debounceTimers map[eventKey]*time.Timer
		maxTimers      map[eventKey]*time.Timer
	}
)

func newActivityService(broadcaster broadcaster, eventBus event.EventHandler) *activityService {
	return &activityService{
		Mutex:          &sync.Mutex{},
		broadcaster:    broadcaster,
		eventBus:       eventBus,
		debounceTimers: make(map[eventKey]*time.Timer),
		maxTimers:      make(map[eventKey]*time.Timer),
	}
}

func (service *activityService) Run(ctx context.Context) error {
	messageChan := make(chan event.HandlerEvent, 100)
	service.eventBus.RegisterHandlerChannel(messageChan,
		event.DownloadUpdateEvent, event.DownloadProgressEvent, event.DownloadCompleteEvent)

	log.Emit(logger.NEW, "Activity service started\n")
	for {
		select {
		case ev := <-messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	resourceID, ok := ev.Payload.(uuid.UUID)
	if !ok {
		return errors.New("illegal payload (expected UUID)")
	}

	resourceKey := eventKey{id: resourceID, ev: ev.Event}

	switch ev.Event {
	case event.DownloadUpdateEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastDownloadUpdate)
	case event.DownloadProgressEvent:
		service.scheduleRapidEventBroadcast(resourceKey, service.BroadcastDownloadProgressUpdate)
	case event.DownloadCompleteEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastDownloadComplete)
	default:
		return errors.New("unknown event type")
	}

	return nil
}

func (service *activityService) scheduleEventBroadcast(resourceKey eventKey, handler broadcastHandler) {
	service.scheduleBroadcast(resourceKey, handler, debounceDuration, maxTimerDuration)
}

func (service *activityService) scheduleRapidEventBroadcast(resourceKey eventKey, handler broadcastHandler) {
	service.scheduleBroadcast(resourceKey, handler, rapidEventDebounceDuration, rapidEventMaxTimerDuration)
}

func (service *activityService) scheduleBroadcast(resourceKey eventKey, handler broadcastHandler, debounceTime time.Duration, maxTime time.Duration) {
	service.Lock()
	defer service.Unlock()

	broadcaster := func() { service.broadcast(resourceKey, handler) }

	// Cancel and re-set a debounce timer
	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
	}
	service.debounceTimers[resourceKey] = time.AfterFunc(debounceTime, broadcaster)

	// Set a max timer if not already set, ensuring a steady stream of
	// events cannot postpone the broadcast forever
	if _, ok := service.maxTimers[resourceKey]; !ok {
		service.maxTimers[resourceKey] = time.AfterFunc(maxTime, broadcaster)
	}
}

func (service *activityService) broadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
		delete(service.debounceTimers, resourceKey)
	}
	if t, ok := service.maxTimers[resourceKey]; ok {
		t.Stop()
		delete(service.maxTimers, resourceKey)
	}
	service.Unlock()

	if err := handler(resourceKey.id); err != nil {
		log.Emit(logger.WARNING, "Broadcast for %v failed: %v\n", resourceKey, err)
	}
}

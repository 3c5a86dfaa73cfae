// Package event contains the names of the events moving through Selene's
// internal bus, along with the bus itself. Services dispatch events when a
// download job changes state, and interested parties (such as the activity
// broadcaster) register handlers or channels to observe them.
package event

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/pkg/logger"
)

var log = logger.Get("Activity")

type (
	Event         string
	Payload       any
	HandlerMethod func(Event, Payload)

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	EventDispatcher interface {
		Dispatch(Event, Payload)
	}

	EventHandler interface {
		RegisterAsyncHandlerFunction(Event, HandlerMethod)
		RegisterHandlerFunction(Event, HandlerMethod)
		RegisterHandlerChannel(HandlerChannel, ...Event)
	}

	EventCoordinator interface {
		EventDispatcher
		EventHandler
	}

	eventHandler struct {
		sync.Mutex
		fnHandlers   map[Event][]handlerMethod
		chanHandlers map[Event][]HandlerChannel
	}

	handlerMethod struct {
		handle HandlerMethod
		async  bool
	}
)

const (
	// DownloadUpdateEvent indicates a job has moved to a new status. The
	// payload is the UUID of the job affected.
	DownloadUpdateEvent Event = "download:update"

	// DownloadProgressEvent indicates the engine has reported fresh transfer
	// progress for a job. Payload is the job UUID.
	DownloadProgressEvent Event = "download:update:progress"

	// DownloadCompleteEvent indicates a job has reached a terminal state
	// (completed OR errored). Payload is the job UUID.
	DownloadCompleteEvent Event = "download:complete"
)

func New() EventCoordinator {
	return &eventHandler{
		fnHandlers:   make(map[Event][]handlerMethod),
		chanHandlers: make(map[Event][]HandlerChannel),
	}
}

// RegisterHandlerChannel takes an event type and a channel and will send
// HandlerEvent messages on the channel any time a Dispatch for the provided
// event occurs. This method can be used multiple times for different events
// on the same channel.
//
// If the channel is BLOCKED when the bus attempts to send on it, then the
// thread dispatching the event will also be BLOCKED. Buffer handler channels
// appropriately to avoid dispatcher-side blocking.
func (handler *eventHandler) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	handler.Lock()
	defer handler.Unlock()

	for _, event := range events {
		handler.chanHandlers[event] = append(handler.chanHandlers[event], handle)
	}
}

// RegisterHandlerFunction takes an event type and a handler method which will
// be stored and called with the payload for the event whenever it is
// dispatched. The handle provided should be guaranteed to return quickly,
// else other threads calling Dispatch on this event bus will be blocked.
func (handler *eventHandler) RegisterHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, false})
}

// RegisterAsyncHandlerFunction accepts an Event and a HandlerMethod which
// will be stored and called inside of a goroutine when the event is handled.
// The speed at which this handle runs is not important to the event bus,
// unlike RegisterHandlerFunction.
func (handler *eventHandler) RegisterAsyncHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, true})
}

func (handler *eventHandler) registerHandlerMethod(event Event, handle handlerMethod) {
	handler.Lock()
	defer handler.Unlock()

	handler.fnHandlers[event] = append(handler.fnHandlers[event], handle)
}

// Dispatch takes an event type and a payload and delivers the payload to all
// handlers registered for the event type provided.
// Note that this method WILL block if a synchronous handler function is
// blocking, or if channel handlers are blocked.
func (handler *eventHandler) Dispatch(event Event, payload Payload) {
	if err := handler.validatePayload(event, payload); err != nil {
		log.Emit(logger.FATAL, "Dispatch for event %v FAILED validation: %v\n", event, err)
		return
	}

	handler.Lock()
	fnHandles := handler.fnHandlers[event]
	chanHandles := handler.chanHandlers[event]
	handler.Unlock()

	for _, handle := range fnHandles {
		if handle.async {
			go handle.handle(event, payload)
		} else {
			handle.handle(event, payload)
		}
	}

	message := HandlerEvent{event, payload}
	for _, handle := range chanHandles {
		handle <- message
	}
}

// validatePayload ensures that the payload provided is valid for the event
// specified. An error is returned if the payload is not valid, in which case
// the event must not be delivered to the registered handlers.
func (handler *eventHandler) validatePayload(event Event, payload Payload) error {
	var payloadTypeName string
	if t := reflect.TypeOf(payload); t != nil {
		payloadTypeName = t.Name()
	} else {
		payloadTypeName = "Nil"
	}

	switch event {
	case DownloadUpdateEvent, DownloadProgressEvent, DownloadCompleteEvent:
		if _, ok := payload.(uuid.UUID); !ok {
			return fmt.Errorf("illegal payload (type %s) for %s event. Expected uuid.UUID payload", payloadTypeName, event)
		}

		return nil
	}

	return errors.New("event type not recognized for validation")
}

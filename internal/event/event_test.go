package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/event"
	"github.com/hbomb79/Selene/pkg/logger"
	"github.com/hbomb79/go-chanassert"
	"github.com/stretchr/testify/assert"
)

func init() {
	logger.SetMinLoggingLevel(logger.FATAL.Level() + 1)
}

func Test_Dispatch_DeliversToChannelHandlers(t *testing.T) {
	t.Parallel()

	bus := event.New()
	jobID := uuid.New()

	channel := make(event.HandlerChannel, 10)
	bus.RegisterHandlerChannel(channel, event.DownloadUpdateEvent, event.DownloadCompleteEvent)

	expecter := chanassert.NewChannelExpecter(channel).Expect(
		chanassert.AllOf(
			chanassert.MatchEqual(event.HandlerEvent{Event: event.DownloadUpdateEvent, Payload: jobID}),
			chanassert.MatchEqual(event.HandlerEvent{Event: event.DownloadCompleteEvent, Payload: jobID}),
		),
	)
	expecter.Listen()

	bus.Dispatch(event.DownloadUpdateEvent, jobID)
	bus.Dispatch(event.DownloadCompleteEvent, jobID)

	expecter.AssertSatisfied(t, time.Second)
}

func Test_Dispatch_ChannelOnlyReceivesRegisteredEvents(t *testing.T) {
	t.Parallel()

	bus := event.New()
	jobID := uuid.New()

	channel := make(event.HandlerChannel, 10)
	bus.RegisterHandlerChannel(channel, event.DownloadProgressEvent)

	expecter := chanassert.NewChannelExpecter(channel).Expect(
		chanassert.ExactlyNOf(2,
			chanassert.MatchEqual(event.HandlerEvent{Event: event.DownloadProgressEvent, Payload: jobID}),
		),
	)
	expecter.Listen()

	bus.Dispatch(event.DownloadProgressEvent, jobID)
	bus.Dispatch(event.DownloadUpdateEvent, jobID)
	bus.Dispatch(event.DownloadProgressEvent, jobID)
	bus.Dispatch(event.DownloadCompleteEvent, jobID)

	expecter.AssertSatisfied(t, time.Second)
}

func Test_Dispatch_CallsFunctionHandlersSynchronously(t *testing.T) {
	t.Parallel()

	bus := event.New()
	jobID := uuid.New()

	received := make([]event.HandlerEvent, 0, 2)
	bus.RegisterHandlerFunction(event.DownloadUpdateEvent, func(ev event.Event, payload event.Payload) {
		received = append(received, event.HandlerEvent{Event: ev, Payload: payload})
	})

	bus.Dispatch(event.DownloadUpdateEvent, jobID)
	bus.Dispatch(event.DownloadUpdateEvent, jobID)

	// Synchronous handlers complete before Dispatch returns, so no
	// synchronisation is needed to observe the deliveries.
	assert.Len(t, received, 2)
	assert.Equal(t, jobID, received[0].Payload)
}

func Test_Dispatch_CallsAsyncHandlers(t *testing.T) {
	t.Parallel()

	bus := event.New()
	jobID := uuid.New()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.RegisterAsyncHandlerFunction(event.DownloadCompleteEvent, func(ev event.Event, payload event.Payload) {
		defer wg.Done()
		assert.Equal(t, event.DownloadCompleteEvent, ev)
		assert.Equal(t, jobID, payload)
	})

	bus.Dispatch(event.DownloadCompleteEvent, jobID)
	wg.Wait()
}

func Test_Dispatch_RejectsIllegalPayloads(t *testing.T) {
	t.Parallel()

	bus := event.New()

	called := false
	bus.RegisterHandlerFunction(event.DownloadUpdateEvent, func(event.Event, event.Payload) { called = true })

	bus.Dispatch(event.DownloadUpdateEvent, "not-a-uuid")
	bus.Dispatch(event.DownloadUpdateEvent, nil)

	assert.False(t, called, "handlers must not observe payloads that fail validation")
}

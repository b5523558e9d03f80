package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToTypedSubscriber(t *testing.T) {
	bus := NewBus(nil, 4)
	defer bus.Close()

	var mu sync.Mutex
	var got []Event
	bus.Subscribe(UploadCompleted, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})

	bus.Publish(NewEvent(UploadCompleted, "task-1", EventData{KeyUploadID: "u-1"}))
	bus.Publish(NewEvent(PublishFailed, "task-1", nil))
	bus.WaitForHandlers()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "task-1", got[0].TaskID)
	assert.Equal(t, "u-1", got[0].Data[KeyUploadID])
}

func TestBusWildcardSeesEverything(t *testing.T) {
	bus := NewBus(nil, 4)
	defer bus.Close()

	var mu sync.Mutex
	seen := map[EventType]int{}
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.Type]++
	})

	bus.Publish(NewEvent(PublishStarted, "t", nil))
	bus.Publish(NewEvent(SignCompleted, "t", nil))
	bus.Publish(NewEvent(PublishCompleted, "t", nil))
	bus.WaitForHandlers()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[EventType]int{PublishStarted: 1, SignCompleted: 1, PublishCompleted: 1}, seen)
}

func TestBusHandlerGetsItsOwnCopy(t *testing.T) {
	bus := NewBus(nil, 1)
	defer bus.Close()

	original := NewEvent(UploadStarted, "t", EventData{KeyBytesTotal: 10})
	bus.Subscribe(UploadStarted, func(e Event) {
		e.Data[KeyBytesTotal] = 999
	})

	bus.Publish(original)
	bus.WaitForHandlers()

	assert.Equal(t, 10, original.Data[KeyBytesTotal])
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil, 2)
	defer bus.Close()

	delivered := make(chan struct{})
	bus.Subscribe(PublishFailed, func(Event) { panic("handler bug") })
	bus.Subscribe(PublishFailed, func(Event) { close(delivered) })

	bus.Publish(NewEvent(PublishFailed, "t", nil))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("second handler never ran")
	}
	bus.WaitForHandlers()
}

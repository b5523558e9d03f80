// Package event carries publish lifecycle notifications out of the SDK.
package event

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Publish lifecycle events
	PublishStarted   EventType = "publish.started"
	PublishCompleted EventType = "publish.completed"
	PublishFailed    EventType = "publish.failed"
	PublishResumed   EventType = "publish.resumed"

	// Step lifecycle events
	SignCompleted      EventType = "sign.completed"
	UploadStarted      EventType = "upload.started"
	UploadCompleted    EventType = "upload.completed"
	UploadFailed       EventType = "upload.failed"
	BroadcastCompleted EventType = "broadcast.completed"
	BroadcastFailed    EventType = "broadcast.failed"
)

// EventData holds additional contextual data keyed by EventDataKey.
type EventData map[EventDataKey]interface{}

// Event is a single lifecycle notification emitted by a publish task.
type Event struct {
	Type      EventType
	TaskID    string
	Timestamp time.Time
	Data      EventData
}

func NewEvent(eventType EventType, taskID string, data EventData) Event {
	if data == nil {
		data = make(EventData)
	}
	return Event{
		Type:      eventType,
		TaskID:    taskID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

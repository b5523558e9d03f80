package event

// EventDataKey defines standard keys used in event data.
type EventDataKey string

const (
	// Common data keys
	KeyError   EventDataKey = "error"
	KeyMessage EventDataKey = "message"
	KeyStep    EventDataKey = "step"

	// Publish flow keys
	KeyLabel     EventDataKey = "label"
	KeyAddress   EventDataKey = "address"
	KeyContentID EventDataKey = "content_id"
	KeyTrackID   EventDataKey = "track_id"
	KeyUploadID  EventDataKey = "upload_id"
	KeyLocator   EventDataKey = "locator"
	KeyTxHash    EventDataKey = "txhash"
	KeyNonce     EventDataKey = "nonce"

	// Transfer metrics keys (start/complete metrics only, no progress events)
	KeyBytesTotal     EventDataKey = "bytes_total"
	KeyElapsedSeconds EventDataKey = "elapsed_seconds"
)

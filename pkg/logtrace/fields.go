package logtrace

// Fields is a type alias for structured log fields
type Fields map[string]interface{}

// WithFields returns a copy of base with extra fields merged in.
func WithFields(base Fields, extra Fields) Fields {
	fields := Fields{}
	for key, value := range base {
		fields[key] = value
	}
	for key, value := range extra {
		fields[key] = value
	}
	return fields
}

const (
	FieldCorrelationID = "correlation_id"
	FieldMethod        = "method"
	FieldModule        = "module"
	FieldError         = "error"
	FieldStatus        = "status"
	FieldRequest       = "request"
	FieldStackTrace    = "stack_trace"
	FieldTaskID        = "task_id"
	FieldUploadID      = "upload_id"
	FieldContentID     = "content_id"
	FieldTrackID       = "track_id"
	FieldAddress       = "address"
	FieldLabel         = "label"
	FieldNonce         = "nonce"
	FieldStep          = "step"
	FieldPayload       = "payload_hash"
	FieldTxHash        = "tx_hash"
)

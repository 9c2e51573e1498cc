package logger

// Tracing fields propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID).
	FieldRequestID = "request_id"

	// FieldJobID is the generation job ID.
	FieldJobID = "job_id"

	// FieldUserID is the owner of the job or connection.
	FieldUserID = "user_id"

	// FieldConnID is the websocket connection ID.
	FieldConnID = "conn_id"

	// FieldView is the generation view being produced (rear, side).
	FieldView = "view"

	// FieldComponent is the component/module name.
	FieldComponent = "component"
)

// Metric fields attached per log entry, used for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds.
	FieldDurationMs = "duration_ms"

	// FieldAttempt is the 1-based execution attempt number.
	FieldAttempt = "attempt"

	// FieldStatus is the operation status.
	FieldStatus = "status"

	// FieldSize is the data size in bytes.
	FieldSize = "size"
)

package device

import "github.com/tailored-agentic-units/echodev/observability"

// Device event types.
const (
	EventOpen           observability.EventType = "device.open"
	EventClose          observability.EventType = "device.close"
	EventRead           observability.EventType = "device.read"
	EventWrite          observability.EventType = "device.write"
	EventWriteTruncated observability.EventType = "device.write.truncated"
	EventControl        observability.EventType = "device.control"
	EventError          observability.EventType = "device.error"
	EventShutdown       observability.EventType = "device.shutdown"
)

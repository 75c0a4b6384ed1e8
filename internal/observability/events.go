package observability

import "time"

// EventEnvelope is the wire shape for everything published to the chat
// events exchange.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Source    string      `json:"source"`
	EmittedAt string      `json:"emitted_at"`
	Payload   interface{} `json:"payload"`
}

// NewEventEnvelope stamps an envelope with the service identity and emit
// time.
func NewEventEnvelope(eventType, eventName string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		EventType: eventType,
		EventName: eventName,
		Source:    "chat-gateway",
		EmittedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

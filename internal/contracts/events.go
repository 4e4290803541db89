package contracts

import "time"

// EventType identifies a stream event
type EventType string

const (
	EventConnected       EventType = "connected"
	EventPing            EventType = "ping"
	EventDocIngested     EventType = "NEW_DOC_INGESTED"
	EventSignalReady     EventType = "NEW_SIGNAL_READY"
	EventComplianceAlert EventType = "COMPLIANCE_ALERT"
)

// Envelope is one record on a user's event stream
type Envelope struct {
	Event     EventType   `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// DocIngestedEvent is the payload of a NEW_DOC_INGESTED event
type DocIngestedEvent struct {
	DocID      string    `json:"doc_id"`
	Ticker     string    `json:"ticker"`
	Period     string    `json:"period,omitempty"`
	DocType    string    `json:"doc_type"`
	ReceivedAt time.Time `json:"received_at"`
}

// SignalReadyEvent is the payload of a NEW_SIGNAL_READY event
type SignalReadyEvent struct {
	Ticker     string     `json:"ticker"`
	Action     Action     `json:"action"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
}

// Document is the stored record of an ingested document
type Document struct {
	DocID      string    `json:"doc_id"`
	Ticker     string    `json:"ticker"`
	Period     string    `json:"period,omitempty"`
	DocType    string    `json:"doc_type"`
	Path       string    `json:"path,omitempty"`
	Uploader   string    `json:"uploader,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

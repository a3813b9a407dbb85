package models

import "encoding/json"

// Queue names. One broker, three queues.
const (
	QueueParseResume  = "parseResume"
	QueueParseJob     = "parseJob"
	QueueComputeMatch = "computeMatch"
)

// QueueMessage is the envelope placed on a queue. Payload is one of the
// typed payloads below, selected by the queue name.
type QueueMessage struct {
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`

	// MessageID is the broker's delivery id, set on receive. Used to extend
	// the visibility timeout during long external calls.
	MessageID string `json:"-"`
}

// ParseResumePayload carries enough metadata to reach object storage and
// the NLP service without a DB round-trip.
type ParseResumePayload struct {
	ResumeID   string `json:"resumeId"`
	StorageKey string `json:"storageKey"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	UserID     string `json:"userId"`
}

// ParseJobPayload covers both file and text sources; StorageKey is empty
// for text jobs.
type ParseJobPayload struct {
	JobID      string    `json:"jobId"`
	Source     JobSource `json:"source"`
	StorageKey string    `json:"storageKey,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	MimeType   string    `json:"mimeType"`
	RawText    string    `json:"rawText,omitempty"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title,omitempty"`
}

// ComputeMatchPayload identifies the match job and its inputs
type ComputeMatchPayload struct {
	MatchJobID string `json:"matchJobId"`
	ResumeID   string `json:"resumeId"`
	JobID      string `json:"jobId"`
	UserID     string `json:"userId"`
}

// NewQueueMessage wraps a typed payload into an envelope
func NewQueueMessage(queue string, payload interface{}) (QueueMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return QueueMessage{}, err
	}
	return QueueMessage{Queue: queue, Payload: data}, nil
}

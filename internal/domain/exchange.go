package domain

import "time"

const (
	ExchangeCompleted = "completed"
	ExchangeFailed    = "failed"
)

// ExchangeRecord is the metadata of one proxied chat call. It never carries
// message text.
type ExchangeRecord struct {
	ID               string
	CorrelationID    string
	Model            string
	Messages         int
	Status           string
	FinishReason     string
	ErrorReason      string
	Chunks           int
	OutputBytes      int
	PromptTokens     int
	CompletionTokens int
	StartedAt        time.Time
	Duration         time.Duration
}

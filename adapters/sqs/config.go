//go:build adapters_sqs
// +build adapters_sqs

package sqspublisher

// Config controls the SQS adapter behavior.
type Config struct {
	// Required: fully qualified SQS queue URL
	QueueURL string

	// Optional: AWS region; falls back to default chain if empty
	Region string

	// FIFO mode. Messages are grouped by tool call id unless MessageGroupID is set,
	// which keeps every event of a call in order.
	FIFO bool
	// Message group ID to use for FIFO queues instead of the tool call id.
	MessageGroupID string

	// DelaySeconds postpones delivery of each message (0..900).
	DelaySeconds int32
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{}
}

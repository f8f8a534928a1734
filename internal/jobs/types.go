// Package jobs holds the work queue, the dispatcher splitting jobs into chunks and the workers
// processing them.
package jobs

import (
	"time"

	"github.com/chemaudit/chemaudit/internal/store/model"
)

const (
	QueueHigh    = "high_priority"
	QueueDefault = "default"

	KindBatchChunk     = "batch_chunk"
	KindValidateSingle = "validate_single"

	// JobTimeout bounds the processing of a single task.
	JobTimeout           = 5 * time.Minute
	DefaultChunkSize     = 100
	SmallJobThreshold    = 500
	DefaultMaxDeliveries = 3
)

// Tiers lists the queues in priority order.
var Tiers = []string{QueueHigh, QueueDefault}

// Item is one input of a batch.
type Item struct {
	Index int    `json:"index"`
	Input string `json:"smiles"`
	Name  string `json:"name,omitempty"`
	// PreError marks an input already known to be unusable, it becomes an error result as is.
	PreError string `json:"pre_error,omitempty"`
}

// ChunkArgs is a contiguous slice of a job's inputs.
type ChunkArgs struct {
	JobID      string           `json:"job_id"`
	ChunkIndex int              `json:"chunk_index"`
	Items      []Item           `json:"items"`
	Options    model.JobOptions `json:"options"`
}

// SingleArgs asks for the validation of one structure. The reply goes to the task's reply key.
type SingleArgs struct {
	Request ValidateRequest `json:"request"`
}

// Task is the unit handed out by the queue.
type Task struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Queue      string      `json:"queue"`
	Deliveries int         `json:"deliveries"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	Chunk      *ChunkArgs  `json:"chunk,omitempty"`
	Single     *SingleArgs `json:"single,omitempty"`
}

// SingleReply is the answer to a validate_single task.
type SingleReply struct {
	Report *Report `json:"report,omitempty"`
	Error  string  `json:"error,omitempty"`
	// ErrorKind is "parse", "input", "checks" or "internal".
	ErrorKind string   `json:"error_kind,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

const (
	replyPrefix   = "task:reply:"
	revokedPrefix = "task:revoked:"
)

func ReplyKey(taskID string) string   { return replyPrefix + taskID }
func RevokedKey(taskID string) string { return revokedPrefix + taskID }

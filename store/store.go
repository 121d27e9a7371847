// Package store mirrors run transcripts for inspection and logging while a
// run is being examined. It is not a durable conversation history: entries
// are keyed by run ID and expire.
package store

import (
	"context"

	"github.com/effective-security/mcphost/pkg/llms"
)

// MessageStore mirrors the turns of orchestration runs, keyed by run ID.
type MessageStore interface {
	Messages(ctx context.Context, runID string) ([]llms.Message, error)
	Add(ctx context.Context, runID string, msgs ...llms.Message) error
	Reset(ctx context.Context, runID string) error
}

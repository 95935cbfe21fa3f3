package resource

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink.
// Useful for production when you don't need event handling or for testing.
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ResourceCreated does nothing and returns nil
func (n *NoopEventSink) ResourceCreated(ctx context.Context, res *Resource) error {
	return nil
}

// ResourceDeleted does nothing and returns nil
func (n *NoopEventSink) ResourceDeleted(ctx context.Context, key uuid.UUID) error {
	return nil
}

// LogEventSink writes resource lifecycle events to slog.
type LogEventSink struct{}

// NewLogEventSink creates an event sink backed by slog
func NewLogEventSink() EventSink {
	return &LogEventSink{}
}

func (l *LogEventSink) ResourceCreated(ctx context.Context, res *Resource) error {
	slog.Info("Resource created", "key", res.Key, "blob_key", res.BlobKey, "content_type", res.ContentType, "size", res.Size)
	return nil
}

func (l *LogEventSink) ResourceDeleted(ctx context.Context, key uuid.UUID) error {
	slog.Info("Resource deleted", "key", key)
	return nil
}

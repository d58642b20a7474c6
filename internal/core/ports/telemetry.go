package ports

import (
	"context"
	"io"
)

// Tracer is the entry point for recording build progress.
type Tracer interface {
	// Start opens a new span for a unit of work, typically one package build.
	Start(ctx context.Context, name string) (context.Context, Span)

	// Close flushes and closes the recording session.
	Close() error
}

// Span represents one unit of work. Writes carry raw build output.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError marks the span as failed.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

package broadcast

import "context"

// Sink receives events fanned out by the Hub. Implementations must honor ctx
// deadlines and be safe for repeated calls; a failing sink never blocks or
// fails the pipeline, the Hub only logs the error.
type Sink interface {
	Deliver(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Broadcaster publishes individual events; Hub satisfies this interface so
// pipeline stages stay agnostic about how subscribers are wired.
type Broadcaster interface {
	Broadcast(evt Event)
}

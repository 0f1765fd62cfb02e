package realtime

import "context"

// Store is the contract consumers program against. Every notification is a
// full Snapshot of the subscribed path, never a delta.
type Store interface {
	// Subscribe delivers the current value at path immediately and again after
	// every change to it. The returned func releases the subscription.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (func(), error)

	// Append stores value under a new child of path and returns the child key.
	// Keys sort in append order.
	Append(ctx context.Context, path string, value any) (string, error)

	// SetValue replaces the value at path. A nil value deletes it.
	SetValue(ctx context.Context, path string, value any) error

	// DeleteNode removes path and everything below it. Missing paths are a no-op.
	DeleteNode(ctx context.Context, path string) error

	// Transaction atomically replaces the value at path with fn's result.
	// Returning false from fn aborts without writing. fn must not call the store.
	Transaction(ctx context.Context, path string, fn func(Snapshot) (any, bool)) (bool, error)

	// Get reads the value at path once.
	Get(ctx context.Context, path string) (Snapshot, error)
}

// Liveness is the disconnect-hook side of a client connection.
type Liveness interface {
	// SetWithOnDisconnect registers fallback to be written at path when the
	// connection drops, then writes value, as one atomic step.
	SetWithOnDisconnect(ctx context.Context, path string, value, fallback any) error

	// OnDisconnectSetValue registers a write the store performs when the
	// connection drops without cancelling it.
	OnDisconnectSetValue(ctx context.Context, path string, value any) error

	// CancelOnDisconnect drops a previously registered write for path.
	CancelOnDisconnect(ctx context.Context, path string) error
}

var (
	_ Store    = (*Hub)(nil)
	_ Liveness = (*Conn)(nil)
)

package adapter

import "context"

// Adapter is a network protocol server managed by the distd process.
//
// Lifecycle:
//  1. Creation: the adapter is built with its configuration and backends
//  2. Startup: Serve() binds the listener and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown bounded by a context
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve() and more than once.
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if the listener cannot be created or shutdown is not graceful
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for active connections up
	// to the context deadline. It is idempotent.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging.
	Protocol() string

	// Port returns the configured TCP port.
	Port() int
}

package realtime

import "errors"

var (
	// ErrInvalidPath is returned for empty paths or segments with reserved characters.
	ErrInvalidPath = errors.New("invalid path")
	// ErrClosed is returned once the hub event loop has stopped.
	ErrClosed = errors.New("realtime hub closed")
	// ErrDisconnected is returned when using a connection after Disconnect.
	ErrDisconnected = errors.New("connection closed")
	// ErrJournal wraps failures of the durable journal; the tree is left unchanged.
	ErrJournal = errors.New("journal write failed")
)

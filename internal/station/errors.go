package station

import "errors"

// Domain errors for station operations.
var (
	// ErrNoFrame is returned by SaveLast before any frame was published.
	ErrNoFrame = errors.New("station: no frame captured yet")

	// ErrSnapshotsDisabled is returned by SaveLast when no captures
	// directory is configured.
	ErrSnapshotsDisabled = errors.New("station: snapshots disabled")

	// ErrUnknownCommand is returned for an unrecognised command action.
	ErrUnknownCommand = errors.New("station: unknown command")

	// ErrInvalidCommand is returned for a malformed command payload.
	ErrInvalidCommand = errors.New("station: invalid command")
)

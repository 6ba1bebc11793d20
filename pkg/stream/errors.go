package stream

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	format = "stream: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrInvalidInput is returned when Ingest receives an empty byte slice.
	ErrInvalidInput = newError("invalid input")

	// ErrNotReady is returned by TakeWindow when no complete window is buffered.
	// Callers recover by submitting more data.
	ErrNotReady = newError("window not ready")

	// ErrInvalidConfig is returned by New for inconsistent buffer settings.
	ErrInvalidConfig = newError("invalid config")

	// ErrClosed is returned once the buffer storage has been released.
	ErrClosed = newError("closed")
)

func invalidConfig(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

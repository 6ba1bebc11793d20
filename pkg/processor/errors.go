package processor

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidMode is returned by Analyze on an automatic-mode processor that
// was not built with ManualAnalyze.
var ErrInvalidMode = errors.New("processor: operation not supported in this mode")

// MatchEngineError reports a matcher failure on one window. The window is
// consumed regardless; the stream stays usable.
type MatchEngineError struct {
	WindowIndex  int
	WindowOffset int64
	Err          error
}

func (e *MatchEngineError) Error() string {
	return fmt.Sprintf("match window %d at offset %d: %v", e.WindowIndex, e.WindowOffset, e.Err)
}

func (e *MatchEngineError) Unwrap() error {
	return e.Err
}

//go:build !cgo || !hyperscan

package matcher

import (
	"github.com/pkg/errors"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// NewHyperscan is unavailable without cgo and the hyperscan build tag.
func NewHyperscan([]*types.Rule, int) (Matcher, error) {
	return nil, errors.New("hyperscan engine requires CGO (build with CGO_ENABLED=1 and -tags=hyperscan)")
}

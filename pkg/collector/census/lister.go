package census

import (
	"context"
	"errors"

	"github.com/srodi/loadreaper/pkg/types"
)

// ErrListerUnavailable marks a census source that could not be invoked at all.
var ErrListerUnavailable = errors.New("process listing unavailable")

// ProcessLister enumerates every running process. Rows come back in listing
// order; ranking is done by Census.
type ProcessLister interface {
	List(ctx context.Context) ([]types.ProcessInfo, error)
}

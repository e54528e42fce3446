package notify

import (
	"context"
	"time"
)

// ThrottleIndex is an optional fast-path duplicate detector in front of
// storage. Reserve marks a dedupe key as seen for the window length and
// reports whether this call was the first within the window.
//
// The index is advisory: when it reports a duplicate the hub still confirms
// against storage, and when the index is unavailable the hub falls back to
// the storage lookup alone. Losing index state can therefore produce an
// extra event after a restart, never a lost one.
type ThrottleIndex interface {
	Reserve(ctx context.Context, key string, window time.Duration) (bool, error)
}

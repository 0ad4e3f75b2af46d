package types

import (
	"context"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// AttributeFetcher retrieves the attribute values for a set of points from
// the remote platform. Implementations are opaque and fallible: callers must
// treat every call as one that can fail and must NOT trust the returned row
// count to match the input (the assembler re-checks it).
type AttributeFetcher interface {
	FetchAttributes(ctx context.Context, points []Point) ([]AttributeRow, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

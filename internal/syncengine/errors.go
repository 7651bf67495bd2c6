package syncengine

import (
	"errors"
	"fmt"
)

var ErrDimensionsNotReady = errors.New("dimensions_not_ready")

// ResolverError reports a table-level failure that aborted the sync.
type ResolverError struct {
	Table string
	Err   error
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("%s: %v", e.Table, e.Err)
}

func (e *ResolverError) Unwrap() error {
	return e.Err
}

// FailedTable returns the table of the first ResolverError in err's chain.
func FailedTable(err error) string {
	var resolverErr *ResolverError
	if errors.As(err, &resolverErr) {
		return resolverErr.Table
	}
	return ""
}

package grid

import "errors"

// ErrConfig is the sentinel wrapped by every configuration error: odd
// dimensions, out-of-range LUTs, or a malformed Program (§7).
var ErrConfig = errors.New("grid: configuration error")

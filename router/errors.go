package router

import "errors"

// ErrRoute is the sentinel wrapped by every routing error: an unrouteable
// destination, a conflicting ROUTE4 merge, or (defensively) a
// non-adjacent hop discovered while replaying a reconstructed path (§7).
var ErrRoute = errors.New("router: routing error")

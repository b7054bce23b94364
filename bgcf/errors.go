package bgcf

import "errors"

// ErrFrame is the sentinel wrapped by malformed-frame errors surfaced to
// callers that choose not to silently resync (most callers use the
// Framer, which resyncs instead of erroring).
var ErrFrame = errors.New("bgcf: frame error")

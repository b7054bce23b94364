package bitstream

import "errors"

// ErrFormat is the sentinel wrapped by any malformed bitstream: bad
// magic, unsupported version, truncated payload, or CRC mismatch.
var ErrFormat = errors.New("bitstream: format error")

package server

import "errors"

// ErrSession is the sentinel wrapped by session-assembly errors: an
// APPLY with no completed session, or a protocol error surfaced back to
// a client as an ERROR frame.
var ErrSession = errors.New("server: session error")

package transport

import "time"

// zeroTime clears a previously set net.Conn deadline (the net package
// convention: the zero Time disables the deadline).
var zeroTime time.Time

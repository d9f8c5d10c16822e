package factoring

import "time"

// Clock supplies the ledger timestamp stamped on new invoices.
type Clock interface {
	Now() uint64
}

// SystemClock reads wall time in unix seconds.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

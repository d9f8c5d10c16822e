package factoring

import "errors"

var (
	// ErrUnauthorized indicates the caller failed the identity check.
	ErrUnauthorized = errors.New("factoring: unauthorized")
	// ErrInvoiceNotFound indicates a purchase targeted an unknown invoice id.
	ErrInvoiceNotFound = errors.New("factoring: invoice not found")
	// ErrAlreadySold indicates a purchase targeted a sold invoice.
	ErrAlreadySold = errors.New("factoring: invoice already sold")
	// ErrOverflow indicates an amount or counter left its integer range.
	ErrOverflow = errors.New("factoring: arithmetic overflow")
	// ErrConflict indicates the store rejected a commit because the
	// watched state changed underneath the transaction.
	ErrConflict = errors.New("factoring: concurrent modification")
	// ErrStatsInconsistent indicates total != active + sold.
	ErrStatsInconsistent = errors.New("factoring: platform stats inconsistent")
)

// IsRejection reports whether err is one of the business outcomes a caller
// can act on, as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrAlreadySold) ||
		errors.Is(err, ErrOverflow)
}

package factoring

import "strconv"

// Storage slots. Every backend addresses state through these keys so data
// written by one backend reads the same through another.
const (
	CounterKey = "INV_CNT"
	StatsKey   = "STATS"

	invoiceTag = "Invoice"
)

// InvoiceKey encodes the (Invoice, id) slot of one invoice record.
func InvoiceKey(id uint64) string {
	return invoiceTag + "/" + strconv.FormatUint(id, 10)
}

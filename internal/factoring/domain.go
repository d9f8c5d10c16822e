package factoring

// Identity names a ledger participant (seller or buyer).
type Identity string

// Unassigned is the buyer of an invoice that has not been purchased yet.
const Unassigned Identity = "unassigned"

// String implements fmt.Stringer.
func (i Identity) String() string { return string(i) }

// InvoiceStatus is a display form of the invoice lifecycle.
type InvoiceStatus string

const (
	StatusListed InvoiceStatus = "listed"
	StatusSold   InvoiceStatus = "sold"
)

// Invoice is one factoring instrument. Everything except Buyer and Sold is
// fixed at listing time.
type Invoice struct {
	ID              uint64   `json:"invoice_id"`
	Seller          Identity `json:"seller"`
	Buyer           Identity `json:"buyer"`
	FaceAmount      int64    `json:"invoice_amount"`
	DiscountRateBps uint64   `json:"discount_rate"`
	SellingPrice    int64    `json:"selling_price"`
	Sold            bool     `json:"is_sold"`
	CreatedAt       uint64   `json:"creation_time"`
}

// Exists reports whether the invoice is a real record rather than the
// not-found sentinel.
func (inv Invoice) Exists() bool {
	return inv.ID != 0
}

// Status returns listed or sold.
func (inv Invoice) Status() InvoiceStatus {
	if inv.Sold {
		return StatusSold
	}
	return StatusListed
}

// PlatformStats aggregates every invoice the ledger has seen.
type PlatformStats struct {
	TotalInvoices  uint64 `json:"total_invoices"`
	ActiveInvoices uint64 `json:"active_invoices"`
	SoldInvoices   uint64 `json:"sold_invoices"`
	TotalVolume    int64  `json:"total_volume"`
}

// Check verifies that total equals active plus sold.
func (s PlatformStats) Check() error {
	if s.TotalInvoices != s.ActiveInvoices+s.SoldInvoices {
		return ErrStatsInconsistent
	}
	return nil
}

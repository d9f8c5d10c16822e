package cli

import (
	"encoding/json"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/factoring/internal/factoring"
)

var printer = message.NewPrinter(language.English)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeInvoice(w io.Writer, id uint64, inv factoring.Invoice) error {
	if !inv.Exists() {
		_, err := printer.Fprintf(w, "Invoice %d not found\n", id)
		return err
	}
	created := time.Unix(int64(inv.CreatedAt), 0).UTC().Format(time.RFC3339)
	_, err := printer.Fprintf(w,
		"%-15s %d\n%-15s %s\n%-15s %s\n%-15s %s\n%-15s %d\n%-15s %d%%\n%-15s %d\n%-15s %s\n",
		"Invoice", inv.ID,
		"Status", inv.Status(),
		"Seller", inv.Seller,
		"Buyer", inv.Buyer,
		"Face amount", inv.FaceAmount,
		"Discount rate", inv.DiscountRateBps,
		"Selling price", inv.SellingPrice,
		"Created", created,
	)
	return err
}

func writeStats(w io.Writer, s factoring.PlatformStats) error {
	_, err := printer.Fprintf(w,
		"%-16s %d\n%-16s %d\n%-16s %d\n%-16s %d\n",
		"Total invoices", s.TotalInvoices,
		"Active invoices", s.ActiveInvoices,
		"Sold invoices", s.SoldInvoices,
		"Total volume", s.TotalVolume,
	)
	return err
}

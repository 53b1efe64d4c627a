package executors

import (
	"github.com/yurifrl/invoicefetch/pkg/filing"
	"github.com/yurifrl/invoicefetch/pkg/models"
)

type Status int

const (
	ToDownload Status = iota
	Exists
	NoInvoice
)

func (s Status) String() string {
	switch s {
	case ToDownload:
		return "to download"
	case Exists:
		return "exists"
	case NoInvoice:
		return "no invoice"
	}
	return "unknown"
}

// Entry pairs an order with what the run will do about it.
type Entry struct {
	Order    models.Order
	Status   Status
	Filename string
}

type Report struct {
	Items []Entry
}

// BuildReport checks every order against the store. Orders without an
// invoice link are reported before the store is consulted.
func BuildReport(orders []models.Order, store Store) *Report {
	items := make([]Entry, 0, len(orders))
	for _, o := range orders {
		entry := Entry{
			Order:    o,
			Filename: filing.GenerateFilename(o.Date, o.Total, o.Number),
		}
		switch {
		case o.InvoiceURL == "":
			entry.Status = NoInvoice
		case store.Exists(o.Date, o.Total, o.Number):
			entry.Status = Exists
		default:
			entry.Status = ToDownload
		}
		items = append(items, entry)
	}
	return &Report{Items: items}
}

// Count returns how many entries have status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

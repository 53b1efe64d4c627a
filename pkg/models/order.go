package models

import "time"

// Order is one purchase scraped from the order history page.
type Order struct {
	Number     string
	Date       time.Time
	Total      string
	InvoiceURL string
}

// Valid reports whether the order carries the fields needed to file it.
func (o Order) Valid() bool {
	return o.Number != "" && !o.Date.IsZero()
}

// DateString formats the order date as YYYY-MM-DD.
func (o Order) DateString() string {
	if o.Date.IsZero() {
		return ""
	}
	return o.Date.Format("2006-01-02")
}

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yurifrl/invoicefetch/pkg/csv"
	"github.com/yurifrl/invoicefetch/pkg/models"
)

const filterDateLayout = "2006-01-02"

type filters struct {
	startDate string
	endDate   string
	minAmount float64
	maxAmount float64
	invoice   string
}

// toFilterFunc validates the flags once and returns the predicate. Amount
// bounds exclude invoices whose stored amount is not a number.
func (f *filters) toFilterFunc() (csv.FilterFunc[models.StoredInvoice], error) {
	var start, end time.Time
	var err error
	if f.startDate != "" {
		if start, err = time.Parse(filterDateLayout, f.startDate); err != nil {
			return nil, fmt.Errorf("invalid --start %q, want YYYY-MM-DD", f.startDate)
		}
	}
	if f.endDate != "" {
		if end, err = time.Parse(filterDateLayout, f.endDate); err != nil {
			return nil, fmt.Errorf("invalid --end %q, want YYYY-MM-DD", f.endDate)
		}
	}
	invoice := strings.ToLower(f.invoice)

	return func(s models.StoredInvoice) bool {
		if !start.IsZero() && s.Date.Before(start) {
			return false
		}
		if !end.IsZero() && s.Date.After(end) {
			return false
		}
		if f.minAmount != 0 || f.maxAmount != 0 {
			amount, err := strconv.ParseFloat(s.Amount, 64)
			if err != nil {
				return false
			}
			if f.minAmount != 0 && amount < f.minAmount {
				return false
			}
			if f.maxAmount != 0 && amount > f.maxAmount {
				return false
			}
		}
		if invoice != "" && !strings.Contains(strings.ToLower(s.InvoiceNumber), invoice) {
			return false
		}
		return true
	}, nil
}

package models

import (
	"path/filepath"
	"time"
)

// StoredInvoice is an invoice file found on disk, reconstructed from its name.
type StoredInvoice struct {
	Date          time.Time
	Amount        string
	InvoiceNumber string
	Path          string
	Team          string
}

// Filename returns the base name of the stored file.
func (s StoredInvoice) Filename() string {
	return filepath.Base(s.Path)
}

// Fields returns the invoice as CSV columns.
func (s StoredInvoice) Fields() []string {
	return []string{
		s.Team,
		s.Date.Format("2006-01-02"),
		s.Amount,
		s.InvoiceNumber,
		s.Path,
	}
}

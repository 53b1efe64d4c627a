// Package filing stores invoice PDFs under <base>/<YYYY>/<MM>/ using names
// derived from the transaction date, amount and invoice number, and parses
// those names back into records.
package filing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/invoicefetch/pkg/models"
)

var (
	amountUnsafe  = regexp.MustCompile(`[^0-9.]`)
	invoiceUnsafe = regexp.MustCompile(`[^\p{L}\p{N}_.-]`)

	// The amount segment cannot contain a hyphen, the invoice segment takes
	// everything up to the extension.
	filenamePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})--([^-]+)--(.+)\.pdf$`)

	yearDir = regexp.MustCompile(`^\d+$`)
)

// FileWriteError is returned when an invoice cannot be persisted.
type FileWriteError struct {
	InvoiceNumber string
	Path          string
	Err           error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("failed to save invoice %s to %s: %v", e.InvoiceNumber, e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error {
	return e.Err
}

// SanitizeAmount keeps digits and decimal points only.
func SanitizeAmount(amount string) string {
	return amountUnsafe.ReplaceAllString(amount, "")
}

// SanitizeInvoiceNumber keeps letters, digits, hyphens, underscores and periods.
func SanitizeInvoiceNumber(invoiceNumber string) string {
	return invoiceUnsafe.ReplaceAllString(invoiceNumber, "")
}

// GenerateFilename builds YYYY-MM-DD--<amount>--<invoice>.pdf.
func GenerateFilename(date time.Time, amount, invoiceNumber string) string {
	return fmt.Sprintf("%04d-%02d-%02d--%s--%s.pdf",
		date.Year(), int(date.Month()), date.Day(),
		SanitizeAmount(amount),
		SanitizeInvoiceNumber(invoiceNumber))
}

// ParseFilename is the inverse of GenerateFilename. It returns false when the
// name does not follow the layout or does not hold a real calendar date.
func ParseFilename(name string) (models.StoredInvoice, bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return models.StoredInvoice{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return models.StoredInvoice{}, false
	}

	return models.StoredInvoice{
		Date:          date,
		Amount:        m[4],
		InvoiceNumber: m[5],
	}, true
}

// Store files invoices below a base directory.
type Store struct {
	baseDir string
	logger  *log.Logger
}

// New creates the base directory if needed and returns a Store rooted there.
func New(baseDir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create invoice directory %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir, logger: logger}, nil
}

// BaseDir returns the directory the store writes to.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Path returns where an invoice belongs, creating its year/month directory.
func (s *Store) Path(date time.Time, amount, invoiceNumber string) (string, error) {
	dir := filepath.Join(s.baseDir, fmt.Sprintf("%04d", date.Year()), fmt.Sprintf("%02d", int(date.Month())))
	// MkdirAll tolerates a directory created concurrently by someone else.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, GenerateFilename(date, amount, invoiceNumber)), nil
}

// Exists reports whether the invoice has already been filed.
func (s *Store) Exists(date time.Time, amount, invoiceNumber string) bool {
	path, err := s.Path(date, amount, invoiceNumber)
	if err != nil {
		s.logger.Warn("failed to resolve invoice path", "invoice", invoiceNumber, "error", err)
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes content to the invoice's path, replacing any previous file.
func (s *Store) Save(content []byte, date time.Time, amount, invoiceNumber string) (string, error) {
	path, err := s.Path(date, amount, invoiceNumber)
	if err != nil {
		return "", &FileWriteError{InvoiceNumber: invoiceNumber, Err: err}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", &FileWriteError{InvoiceNumber: invoiceNumber, Path: path, Err: err}
	}
	s.logger.Debug("saved invoice", "invoice", invoiceNumber, "path", path, "bytes", len(content))
	return path, nil
}

// List returns the invoices filed below the store, oldest first. A year of 0
// lists every year.
func (s *Store) List(year int) ([]models.StoredInvoice, error) {
	var years []string
	if year != 0 {
		dir := filepath.Join(s.baseDir, fmt.Sprintf("%04d", year))
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			years = append(years, dir)
		}
	} else {
		entries, err := os.ReadDir(s.baseDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() && yearDir.MatchString(entry.Name()) {
				years = append(years, filepath.Join(s.baseDir, entry.Name()))
			}
		}
	}

	var invoices []models.StoredInvoice
	for _, dir := range years {
		months, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Debug("failed to read year directory", "dir", dir, "error", err)
			continue
		}
		for _, month := range months {
			if !month.IsDir() {
				continue
			}
			matches, err := filepath.Glob(filepath.Join(dir, month.Name(), "*.pdf"))
			if err != nil {
				continue
			}
			for _, match := range matches {
				inv, ok := ParseFilename(filepath.Base(match))
				if !ok {
					s.logger.Debug("skipping unrecognised file", "file", match)
					continue
				}
				inv.Path = match
				invoices = append(invoices, inv)
			}
		}
	}

	sort.SliceStable(invoices, func(i, j int) bool {
		if invoices[i].Date.Equal(invoices[j].Date) {
			return invoices[i].Path < invoices[j].Path
		}
		return invoices[i].Date.Before(invoices[j].Date)
	})
	return invoices, nil
}

// Cleanup removes empty month directories and then empty year directories.
// Errors are ignored.
func (s *Store) Cleanup() {
	years, err := os.ReadDir(s.baseDir)
	if err != nil {
		s.logger.Debug("cleanup skipped", "error", err)
		return
	}
	for _, y := range years {
		if !y.IsDir() || !yearDir.MatchString(y.Name()) {
			continue
		}
		yearPath := filepath.Join(s.baseDir, y.Name())
		months, err := os.ReadDir(yearPath)
		if err != nil {
			continue
		}
		for _, m := range months {
			if !m.IsDir() {
				continue
			}
			monthPath := filepath.Join(yearPath, m.Name())
			if isEmptyDir(monthPath) {
				if err := os.Remove(monthPath); err != nil {
					s.logger.Debug("failed to remove directory", "dir", monthPath, "error", err)
				}
			}
		}
		if isEmptyDir(yearPath) {
			if err := os.Remove(yearPath); err != nil {
				s.logger.Debug("failed to remove directory", "dir", yearPath, "error", err)
			}
		}
	}
}

func isEmptyDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) == 0
}

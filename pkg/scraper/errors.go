package scraper

import (
	"errors"
	"fmt"
)

var (
	ErrOrdersPageNotFound = errors.New("orders page not found")
	ErrPDFLinkNotFound    = errors.New("could not find PDF download link")
	errNotPDF             = errors.New("response is not a PDF")
)

// NetworkError reports a failed invoice download.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download invoice from %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to download invoice from %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

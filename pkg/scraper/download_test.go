package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/invoicefetch/pkg/httpclient"
)

const pdfBody = "%PDF-1.4 fake invoice"

type invoiceServer struct {
	*httptest.Server
	pageHits atomic.Int32
}

func newInvoiceServer(t *testing.T) *invoiceServer {
	s := &invoiceServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/invoice/pdf", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session-token"); err != nil || c.Value != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, acceptPDF, r.Header.Get("Accept"))
		assert.Equal(t, acceptLanguage, r.Header.Get("Accept-Language"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, pdfBody)
	})
	mux.HandleFunc("/files/invoice.PDF", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, pdfBody)
	})
	mux.HandleFunc("/invoice/42", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-pdf")
		_, _ = io.WriteString(w, pdfBody)
	})
	mux.HandleFunc("/invoice/page", func(w http.ResponseWriter, r *http.Request) {
		s.pageHits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html>invoice viewer</html>")
	})
	mux.HandleFunc("/viewer", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>still not a pdf</html>")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newDownloadClient(t *testing.T, session *fakeSession) *Client {
	fetcher, err := httpclient.New(httpclient.Options{Timeout: 5 * time.Second}, log.New(io.Discard))
	require.NoError(t, err)
	session.cookies = []*http.Cookie{{Name: "session-token", Value: "secret", Domain: "127.0.0.1", Path: "/"}}
	return newTestClient(session, fetcher)
}

func TestDownloadInvoicePDF(t *testing.T) {
	srv := newInvoiceServer(t)
	session := &fakeSession{pages: map[string]string{}}
	c := newDownloadClient(t, session)

	body, err := c.DownloadInvoice(context.Background(), srv.URL+"/invoice/pdf")
	require.NoError(t, err)
	assert.Equal(t, pdfBody, string(body))
	assert.Empty(t, session.navigated)
}

func TestDownloadInvoicePDFExtension(t *testing.T) {
	srv := newInvoiceServer(t)
	session := &fakeSession{pages: map[string]string{}}
	c := newDownloadClient(t, session)

	body, err := c.DownloadInvoice(context.Background(), srv.URL+"/files/invoice.PDF")
	require.NoError(t, err)
	assert.Equal(t, pdfBody, string(body))
}

func TestDownloadInvoiceNonStandardPDFType(t *testing.T) {
	srv := newInvoiceServer(t)
	session := &fakeSession{pages: map[string]string{}}
	c := newDownloadClient(t, session)

	body, err := c.DownloadInvoice(context.Background(), srv.URL+"/invoice/42")
	require.NoError(t, err)
	assert.Equal(t, pdfBody, string(body))
	assert.Empty(t, session.navigated)
}

func TestIsPDFContentType(t *testing.T) {
	assert.True(t, isPDFContentType("application/pdf"))
	assert.True(t, isPDFContentType("application/x-pdf"))
	assert.True(t, isPDFContentType("Application/PDF; charset=binary"))
	assert.False(t, isPDFContentType("text/html; charset=utf-8"))
	assert.False(t, isPDFContentType(""))
}

func TestDownloadInvoiceHTTPError(t *testing.T) {
	srv := newInvoiceServer(t)
	c := newDownloadClient(t, &fakeSession{pages: map[string]string{}})

	_, err := c.DownloadInvoice(context.Background(), srv.URL+"/missing")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
	assert.Equal(t, srv.URL+"/missing", netErr.URL)
}

func TestDownloadInvoiceWithoutSessionCookies(t *testing.T) {
	srv := newInvoiceServer(t)
	session := &fakeSession{pages: map[string]string{}}
	c := newDownloadClient(t, session)
	session.cookies = nil

	_, err := c.DownloadInvoice(context.Background(), srv.URL+"/invoice/pdf")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusForbidden, netErr.StatusCode)
}

func TestDownloadInvoiceFallsBackToPage(t *testing.T) {
	srv := newInvoiceServer(t)
	session := &fakeSession{pages: map[string]string{
		srv.URL + "/invoice/page": `<html><body><iframe src="/invoice/pdf"></iframe></body></html>`,
	}}
	c := newDownloadClient(t, session)

	body, err := c.DownloadInvoice(context.Background(), srv.URL+"/invoice/page")
	require.NoError(t, err)
	assert.Equal(t, pdfBody, string(body))
	assert.Equal(t, []string{srv.URL + "/invoice/page"}, session.navigated)
	assert.EqualValues(t, 1, srv.pageHits.Load())
}

func TestDownloadInvoiceNoPDFReference(t *testing.T) {
	srv := newInvoiceServer(t)
	session := &fakeSession{pages: map[string]string{
		srv.URL + "/invoice/page": `<html><body><a href="/help">help</a></body></html>`,
	}}
	c := newDownloadClient(t, session)

	_, err := c.DownloadInvoice(context.Background(), srv.URL+"/invoice/page")
	assert.ErrorIs(t, err, ErrPDFLinkNotFound)
}

func TestDownloadInvoiceFallsBackOnce(t *testing.T) {
	srv := newInvoiceServer(t)
	session := &fakeSession{pages: map[string]string{
		srv.URL + "/invoice/page": `<html><body><embed src="/viewer?type=pdf"></body></html>`,
		srv.URL + "/viewer":       `<html><body><embed src="/viewer?type=pdf"></body></html>`,
	}}
	c := newDownloadClient(t, session)

	_, err := c.DownloadInvoice(context.Background(), srv.URL+"/invoice/page")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNotPDF))
	assert.Len(t, session.navigated, 1)
	assert.EqualValues(t, 1, srv.pageHits.Load())
}

func TestDownloadInvoiceTransportError(t *testing.T) {
	c := newDownloadClient(t, &fakeSession{pages: map[string]string{}})

	_, err := c.DownloadInvoice(context.Background(), "http://127.0.0.1:1/invoice.pdf")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}

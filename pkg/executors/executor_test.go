package executors

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/invoicefetch/pkg/filing"
	"github.com/yurifrl/invoicefetch/pkg/models"
)

type fakeDownloader struct {
	files map[string]string
	calls []string
}

func (f *fakeDownloader) DownloadInvoice(_ context.Context, locator string) ([]byte, error) {
	f.calls = append(f.calls, locator)
	body, ok := f.files[locator]
	if !ok {
		return nil, errors.New("status 404")
	}
	return []byte(body), nil
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func orders() []models.Order {
	return []models.Order{
		{Number: "111-1111111-1111111", Date: day(time.March, 15), Total: "42.50", InvoiceURL: "https://x/inv/1"},
		{Number: "222-2222222-2222222", Date: day(time.March, 16), Total: "10", InvoiceURL: "https://x/inv/2"},
		{Number: "333-3333333-3333333", Date: day(time.March, 17), Total: "5"},
		{Number: "444-4444444-4444444", Date: day(time.April, 2), Total: "99.99", InvoiceURL: "https://x/inv/4"},
	}
}

func setup(t *testing.T) (*filing.Store, *fakeDownloader, *bytes.Buffer, *Executor) {
	t.Helper()
	logger := log.New(io.Discard)
	store, err := filing.New(t.TempDir(), logger)
	require.NoError(t, err)

	dl := &fakeDownloader{files: map[string]string{
		"https://x/inv/1": "%PDF-1",
		"https://x/inv/2": "%PDF-2",
	}}
	var out bytes.Buffer
	return store, dl, &out, New(logger, dl, store, &out)
}

func TestBuildReport(t *testing.T) {
	store, _, _, _ := setup(t)
	_, err := store.Save([]byte("%PDF"), day(time.March, 16), "10", "222-2222222-2222222")
	require.NoError(t, err)

	report := BuildReport(orders(), store)
	require.Len(t, report.Items, 4)
	assert.Equal(t, ToDownload, report.Items[0].Status)
	assert.Equal(t, Exists, report.Items[1].Status)
	assert.Equal(t, NoInvoice, report.Items[2].Status)
	assert.Equal(t, ToDownload, report.Items[3].Status)
	assert.Equal(t, "2024-03-15--42.50--111-1111111-1111111.pdf", report.Items[0].Filename)

	assert.Equal(t, 2, report.Count(ToDownload))
	assert.Equal(t, 1, report.Count(Exists))
	assert.Equal(t, 1, report.Count(NoInvoice))
}

func TestApply(t *testing.T) {
	store, dl, out, exec := setup(t)
	_, err := store.Save([]byte("%PDF"), day(time.March, 16), "10", "222-2222222-2222222")
	require.NoError(t, err)

	summary, err := exec.Run(context.Background(), orders(), false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Downloaded: 1, Skipped: 1, Errors: 2, Total: 4}, summary)
	assert.Equal(t, []string{"https://x/inv/1", "https://x/inv/4"}, dl.calls)
	assert.Contains(t, out.String(), "Downloaded: 2024-03-15--42.50--111-1111111-1111111.pdf")

	path, err := store.Path(day(time.March, 15), "42.50", "111-1111111-1111111")
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1", string(content))
}

func TestApplyIsIdempotent(t *testing.T) {
	_, dl, _, exec := setup(t)
	ords := orders()[:2]

	first, err := exec.Run(context.Background(), ords, false)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Downloaded)

	second, err := exec.Run(context.Background(), ords, false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 2, Total: 2}, second)
	assert.Len(t, dl.calls, 2)
}

func TestDryRun(t *testing.T) {
	store, dl, out, exec := setup(t)

	summary, err := exec.Run(context.Background(), orders(), true)
	require.NoError(t, err)
	assert.Equal(t, Summary{Downloaded: 3, Errors: 1, Total: 4}, summary)
	assert.Empty(t, dl.calls)
	assert.Contains(t, out.String(), "Would download: 2024-04-02--99.99--444-4444444-4444444.pdf")

	listed, err := store.List(0)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestApplyCancelled(t *testing.T) {
	_, dl, _, exec := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Run(ctx, orders(), false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dl.calls)
}

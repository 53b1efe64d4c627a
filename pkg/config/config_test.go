package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, env := range envBindings {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestBuildDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Build("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Downloads", "invoices"), cfg.DownloadDir)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.ElementTimeout())
	assert.Equal(t, "https://business.amazon.com", cfg.Amazon.BusinessURL)
	assert.Equal(t, 5*time.Minute, cfg.Amazon.SSOWait())
	assert.Equal(t, 2*time.Second, cfg.Scraper.SettleDelay())
	assert.Equal(t, 50, cfg.Scraper.MaxScrolls)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestBuildReadsDefaultFile(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".invoice-fetcher", "config.yaml"), `
download_dir: ~/invoices
browser:
  headless: false
amazon:
  email: ana@example.com
`)

	cfg, err := Build("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "invoices"), cfg.DownloadDir)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 30, cfg.Browser.Timeout)
	assert.Equal(t, "ana@example.com", cfg.Amazon.Email)
}

func TestBuildEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	writeFile(t, path, "amazon:\n  email: file@example.com\nbrowser:\n  timeout: 10\n")

	t.Setenv("AMAZON_BUSINESS_EMAIL", "env@example.com")
	t.Setenv("AMAZON_BUSINESS_PASSWORD", "hunter2")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_TIMEOUT", "45")
	t.Setenv("INVOICE_DOWNLOAD_DIR", "/srv/invoices")

	cfg, err := Build(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", cfg.Amazon.Email)
	assert.Equal(t, "hunter2", cfg.Amazon.Password)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 45, cfg.Browser.Timeout)
	assert.Equal(t, "/srv/invoices", cfg.DownloadDir)
}

func TestBuildFlagOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("INVOICE_DOWNLOAD_DIR", "/srv/invoices")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("download-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--download-dir", "/tmp/out"}))

	cfg, err := Build("", flags)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.DownloadDir)
}

func TestBuildUnsetFlagKeepsEnv(t *testing.T) {
	isolate(t)
	t.Setenv("INVOICE_DOWNLOAD_DIR", "/srv/invoices")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("download-dir", "", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Build("", flags)
	require.NoError(t, err)
	assert.Equal(t, "/srv/invoices", cfg.DownloadDir)
}

func TestBuildMissingExplicitFile(t *testing.T) {
	home := isolate(t)

	_, err := Build(filepath.Join(home, "nope.yaml"), nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBuildInvalidFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "bad.yaml")
	writeFile(t, path, "amazon: [unterminated\n")

	_, err := Build(path, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)

	cfg.Amazon.Email = "ana@example.com"
	assert.NoError(t, cfg.Validate())

	cfg.Amazon.BusinessURL = "business.amazon.com"
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}

func TestWriteDefault(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "nested", "config.yaml")

	require.NoError(t, WriteDefault(path))

	cfg, err := Build(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestTeamDir(t *testing.T) {
	cfg := Config{DownloadDir: "/data/invoices"}
	assert.Equal(t, filepath.Join("/data/invoices", "engineering"), cfg.TeamDir("engineering"))
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrConfiguration = errors.New("configuration error")

type Config struct {
	DownloadDir string  `mapstructure:"download_dir" yaml:"download_dir"`
	Browser     Browser `mapstructure:"browser" yaml:"browser"`
	Amazon      Amazon  `mapstructure:"amazon" yaml:"amazon"`
	Scraper     Scraper `mapstructure:"scraper" yaml:"scraper"`
	HTTP        HTTP    `mapstructure:"http" yaml:"http"`
	Logging     Logging `mapstructure:"logging" yaml:"logging"`
}

// Browser timeouts are in seconds.
type Browser struct {
	Headless        bool   `mapstructure:"headless" yaml:"headless"`
	Timeout         int    `mapstructure:"timeout" yaml:"timeout"`
	PageLoadTimeout int    `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	ExecPath        string `mapstructure:"exec_path" yaml:"exec_path,omitempty"`
}

// Amazon timeouts are in seconds.
type Amazon struct {
	BusinessURL  string `mapstructure:"business_url" yaml:"business_url"`
	Email        string `mapstructure:"email" yaml:"email,omitempty"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	UseSSO       bool   `mapstructure:"use_sso" yaml:"use_sso"`
	LoginTimeout int    `mapstructure:"login_timeout" yaml:"login_timeout"`
	SSOTimeout   int    `mapstructure:"sso_timeout" yaml:"sso_timeout"`
}

type Scraper struct {
	SettleDelayMS   int `mapstructure:"settle_delay_ms" yaml:"settle_delay_ms"`
	LoadMoreDelayMS int `mapstructure:"load_more_delay_ms" yaml:"load_more_delay_ms"`
	MaxScrolls      int `mapstructure:"max_scrolls" yaml:"max_scrolls"`
}

type HTTP struct {
	Timeout          int    `mapstructure:"timeout" yaml:"timeout"`
	UserAgent        string `mapstructure:"user_agent" yaml:"user_agent"`
	CloudflareBypass bool   `mapstructure:"cloudflare_bypass" yaml:"cloudflare_bypass"`
}

type Logging struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		DownloadDir: filepath.Join(homeDir(), "Downloads", "invoices"),
		Browser: Browser{
			Headless:        true,
			Timeout:         30,
			PageLoadTimeout: 30,
		},
		Amazon: Amazon{
			BusinessURL:  "https://business.amazon.com",
			LoginTimeout: 60,
			SSOTimeout:   300,
		},
		Scraper: Scraper{
			SettleDelayMS:   2000,
			LoadMoreDelayMS: 3000,
			MaxScrolls:      50,
		},
		HTTP: HTTP{
			Timeout:   30,
			UserAgent: userAgent,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// DefaultFile is the config file read when none is given.
func DefaultFile() string {
	return filepath.Join(homeDir(), ".invoice-fetcher", "config.yaml")
}

var envBindings = map[string]string{
	"amazon.email":     "AMAZON_BUSINESS_EMAIL",
	"amazon.password":  "AMAZON_BUSINESS_PASSWORD",
	"download_dir":     "INVOICE_DOWNLOAD_DIR",
	"browser.headless": "BROWSER_HEADLESS",
	"browser.timeout":  "BROWSER_TIMEOUT",
}

// Build layers defaults, the config file, environment variables and flags,
// in that order. A missing default file is not an error; a missing cfgFile is.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	path := cfgFile
	if path == "" {
		path = DefaultFile()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: load %s: %w", ErrConfiguration, path, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %w", ErrConfiguration, env, err)
		}
	}

	if flags != nil {
		if f := flags.Lookup("download-dir"); f != nil {
			if err := v.BindPFlag("download_dir", f); err != nil {
				return nil, fmt.Errorf("%w: bind flag: %w", ErrConfiguration, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrConfiguration, err)
	}
	cfg.DownloadDir = expandHome(cfg.DownloadDir)
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("download_dir", d.DownloadDir)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.timeout", d.Browser.Timeout)
	v.SetDefault("browser.page_load_timeout", d.Browser.PageLoadTimeout)
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)

	v.SetDefault("amazon.business_url", d.Amazon.BusinessURL)
	v.SetDefault("amazon.email", d.Amazon.Email)
	v.SetDefault("amazon.password", d.Amazon.Password)
	v.SetDefault("amazon.use_sso", d.Amazon.UseSSO)
	v.SetDefault("amazon.login_timeout", d.Amazon.LoginTimeout)
	v.SetDefault("amazon.sso_timeout", d.Amazon.SSOTimeout)

	v.SetDefault("scraper.settle_delay_ms", d.Scraper.SettleDelayMS)
	v.SetDefault("scraper.load_more_delay_ms", d.Scraper.LoadMoreDelayMS)
	v.SetDefault("scraper.max_scrolls", d.Scraper.MaxScrolls)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.cloudflare_bypass", d.HTTP.CloudflareBypass)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// Validate checks what every command needs before talking to the portal.
func (c *Config) Validate() error {
	if c.Amazon.Email == "" {
		return fmt.Errorf("%w: email not configured, set AMAZON_BUSINESS_EMAIL or amazon.email in the config file", ErrConfiguration)
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("%w: download_dir is empty", ErrConfiguration)
	}
	u, err := url.Parse(c.Amazon.BusinessURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid amazon.business_url %q", ErrConfiguration, c.Amazon.BusinessURL)
	}
	return nil
}

// TeamDir is where invoices of team are filed.
func (c *Config) TeamDir(team string) string {
	return filepath.Join(c.DownloadDir, team)
}

// WriteDefault writes the default configuration to path, creating its
// directory.
func WriteDefault(path string) error {
	out, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (b Browser) ElementTimeout() time.Duration { return seconds(b.Timeout) }
func (b Browser) PageLoad() time.Duration { return seconds(b.PageLoadTimeout) }
func (a Amazon) LoginWait() time.Duration { return seconds(a.LoginTimeout) }
func (a Amazon) SSOWait() time.Duration { return seconds(a.SSOTimeout) }
func (h HTTP) RequestTimeout() time.Duration { return seconds(h.Timeout) }
func (s Scraper) SettleDelay() time.Duration { return millis(s.SettleDelayMS) }
func (s Scraper) LoadMoreDelay() time.Duration { return millis(s.LoadMoreDelayMS) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yurifrl/invoicefetch/pkg/auth"
	"github.com/yurifrl/invoicefetch/pkg/browser"
	"github.com/yurifrl/invoicefetch/pkg/config"
)

var skipAuthTest bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Set up configuration and credentials",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&skipAuthTest, "skip-test", false, "Do not test the login after storing credentials")
}

func runSetup(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	printTitle(out, "Amazon Business Invoice Fetcher Setup")

	path := cfgFile
	if path == "" {
		path = config.DefaultFile()
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		printSuccess(out, "Created default configuration at %s", path)
	}

	// The file exists now, so Build reads it instead of falling back.
	cfgFile = path
	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	in := bufio.NewReader(cmd.InOrStdin())
	email := cfg.Amazon.Email
	if email == "" {
		if email, err = prompt(out, in, "Amazon Business email: "); err != nil {
			return err
		}
		if email == "" {
			return fmt.Errorf("%w: email is required", config.ErrConfiguration)
		}
	}

	password, err := readPassword(cmd.InOrStdin(), out, in, "Amazon Business password: ")
	if err != nil {
		return err
	}
	if err := auth.StorePassword(email, password); err != nil {
		return err
	}

	printSuccess(out, "Credentials stored securely in system keyring")
	printInfo(out, "Configuration file: %s", path)
	printInfo(out, "Download directory: %s", cfg.DownloadDir)

	if skipAuthTest {
		return nil
	}

	fmt.Fprintln(out, "\nTesting authentication...")
	ctx, stop := interruptible(cmd.Context())
	defer stop()
	session, err := browser.Launch(ctx, browser.Options{
		Headless:        cfg.Browser.Headless && !cfg.Amazon.UseSSO,
		ExecPath:        cfg.Browser.ExecPath,
		UserAgent:       cfg.HTTP.UserAgent,
		PageLoadTimeout: cfg.Browser.PageLoad(),
	}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	opts := authOptions(cfg)
	opts.Email = email
	opts.Password = password
	if err := auth.New(session, opts, logger).Authenticate(ctx, false); err != nil {
		return fmt.Errorf("authentication test failed: %w", err)
	}
	printSuccess(out, "Authentication test successful!")
	return nil
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal and falls back to a plain
// line read otherwise.
func readPassword(src io.Reader, out io.Writer, in *bufio.Reader, label string) (string, error) {
	if f, ok := src.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, label)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	pw, err := prompt(out, in, label)
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", fmt.Errorf("%w: password is required", config.ErrConfiguration)
	}
	return pw, nil
}

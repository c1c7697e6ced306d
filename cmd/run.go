// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsexec"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
	"github.com/duonglaiquang/htmlunit/internal/browser/webclient"
	"github.com/duonglaiquang/htmlunit/internal/observability"
)

type runFlags struct {
	browser      string
	throwOnError bool
	timeout      time.Duration
	wait         time.Duration
}

func newRunCommand(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file|url>",
		Short: "Load a page, run its scripts and print what they report",
		Long: `Loads the page in a fresh browser, runs its scripts and the body onload handler,
and prints every alert() message to stdout and every script error to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("browser") {
				a.cfg.SetBrowserVersion(f.browser)
			}
			if cmd.Flags().Changed("throw-on-error") {
				a.cfg.SetBrowserThrowExceptionOnScriptError(f.throwOnError)
			}
			if cmd.Flags().Changed("timeout") {
				a.cfg.SetEngineJavaScriptTimeout(f.timeout)
			}
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			return runPage(cmd.Context(), a, target, f.wait, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&f.browser, "browser", "", "browser to emulate (chrome, edge, firefox, firefox-esr)")
	cmd.Flags().BoolVar(&f.throwOnError, "throw-on-error", false, "stop at the first script error and exit non-zero")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "abort any single script call running longer than this")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "keep running timers this long after the page has loaded")
	return cmd
}

// parseTarget accepts absolute URLs and local paths.
func parseTarget(arg string) (*url.URL, error) {
	if u, err := url.Parse(arg); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "file", "about":
			return u, nil
		}
	}
	path, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", arg, err)
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}, nil
}

func runPage(ctx context.Context, a *app, target *url.URL, wait time.Duration, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := webclient.OptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()
	client := webclient.New(opts, logger)
	defer client.Close()

	reporter := &reporter{out: stdout, errOut: stderr}
	client.SetAlertHandler(reporter)
	client.SetErrorListener(reporter)

	p, err := client.GetPage(ctx, nil, target)
	if err != nil {
		return fmt.Errorf("loading %s: %w", target, err)
	}
	logger.Info("Page loaded",
		zap.Stringer("url", p.URL()),
		zap.String("title", p.Title()),
		zap.String("browser", opts.Version.Nickname()))

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
	if n := reporter.failures(); n > 0 {
		logger.Info("Script errors reported", zap.Int("count", n))
	}
	return nil
}

// reporter prints alerts and script failures as they happen.
type reporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	errors int
}

func (r *reporter) HandleAlert(_ *page.HtmlPage, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, message)
}

func (r *reporter) ScriptException(_ *page.HtmlPage, exc *jsexec.ScriptException) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
	fmt.Fprintf(r.errOut, "script error: %s\n", exc.Error())
}

func (r *reporter) TimeoutError(_ *page.HtmlPage, allowed, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
	fmt.Fprintf(r.errOut, "script timeout: ran %s, allowed %s\n", elapsed.Round(time.Millisecond), allowed)
}

func (r *reporter) failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vigil/internal/apperr"
	"github.com/starford/vigil/internal/storage"
)

// XPath expressions of the report page controls.
var (
	exportLinks = []string{
		`//a[contains(@href, 'export-csv')]`,
		`//a[contains(text(), 'Export') or contains(text(), 'export')]`,
	}
	downloadLinks = []string{
		`//a[contains(@href, 'download') or contains(text(), 'Download')]`,
	}
)

// clickScript clicks the first node matching an XPath and reports whether
// one was found.
const clickScript = `(() => {
	const n = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!n) { return false; }
	n.click();
	return true;
})()`

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

const pollInterval = time.Second

// BrowserExporter drives the report page in headless Chrome to export the
// incident CSV for a year.
type BrowserExporter struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewBrowserExporter validates opts and returns an exporter.
func NewBrowserExporter(opts Options, logger *slog.Logger) (*BrowserExporter, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("fetch: invalid options: %w", err)
	}
	return &BrowserExporter{opts: opts, logger: logger, now: time.Now}, nil
}

// Fetch exports the CSV for year and parses it. Cleanup removes the file.
func (b *BrowserExporter) Fetch(ctx context.Context, year int) (*Result, error) {
	path, err := b.Export(ctx, year)
	if err != nil {
		return nil, err
	}
	schema, recs, err := ReadSnapshot(path)
	if err != nil {
		_ = removeIfExists(path)
		return nil, err
	}
	return &Result{
		Path:    path,
		Year:    year,
		Schema:  schema,
		Records: recs,
		cleanup: func() error { return removeIfExists(path) },
	}, nil
}

// Export downloads the CSV for year into the output directory and returns
// its path. The browser and its download directory are disposed of on
// every path.
func (b *BrowserExporter) Export(ctx context.Context, year int) (string, error) {
	if err := validation.Validate(year, validation.Min(2013), validation.Max(b.now().Year()+1)); err != nil {
		return "", fmt.Errorf("fetch: year %d: %w", year, err)
	}
	if err := os.MkdirAll(b.opts.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: create out dir: %w", err)
	}
	out, err := storage.NewFS(b.opts.OutDir)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	downloadDir, err := os.MkdirTemp("", "vigil-download-*")
	if err != nil {
		return "", fmt.Errorf("fetch: create download dir: %w", err)
	}
	defer os.RemoveAll(downloadDir)

	browserCtx, closeBrowser, err := b.startBrowser(ctx, downloadDir)
	if err != nil {
		return "", err
	}
	defer func() {
		b.logger.Info("export: closing browser")
		closeBrowser()
	}()

	downloaded, err := b.drive(browserCtx, year, downloadDir)
	if err != nil {
		b.logger.Error("export: failed", slog.Int("year", year), slog.String("error", err.Error()))
		return "", err
	}

	name := TargetName(b.opts.Prefix, year, b.now())
	if err := out.Import(downloaded, name, b.opts.Overwrite); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return "", fmt.Errorf("%w: %s", ErrTargetExists, name)
		}
		return "", fmt.Errorf("fetch: save export: %w", err)
	}
	target, err := out.Abs(name)
	if err != nil {
		return "", err
	}
	b.logger.Info("export: file saved", slog.String("path", target))
	return target, nil
}

func (b *BrowserExporter) startBrowser(ctx context.Context, downloadDir string) (context.Context, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("silent", true),
		chromedp.UserAgent(b.opts.UserAgent),
	)
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		b.logger.Debug(fmt.Sprintf(format, args...))
	}))
	closeAll := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// The first Run starts the browser; it must use the long-lived context.
	err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
	)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("fetch: start browser: %w", err)
	}
	return browserCtx, closeAll, nil
}

// drive walks the report page through the export and returns the path of
// the downloaded file inside downloadDir.
func (b *BrowserExporter) drive(ctx context.Context, year int, downloadDir string) (string, error) {
	wait := b.opts.WaitTimeout
	url := b.opts.ReportURL(year)

	b.logger.Info("export: loading report page", slog.Int("year", year), slog.String("url", url))
	if err := b.step(ctx, wait, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("fetch: navigate: %w", err)
	}
	if err := b.step(ctx, wait, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		b.logger.Warn("export: page load timeout, continuing anyway")
	}

	b.logger.Info("export: looking for export link")
	found, err := clickFirst(ctx, exportLinks)
	if err != nil {
		return "", fmt.Errorf("fetch: click export: %w", err)
	}
	if !found {
		return "", fmt.Errorf("%w: export link", ErrElementNotFound)
	}

	b.logger.Info("export: waiting for export to complete")
	if err := waitForLocation(ctx, "export-finished", b.opts.Timeout); err != nil {
		return "", err
	}

	baseline, err := listDir(downloadDir)
	if err != nil {
		return "", fmt.Errorf("fetch: list downloads: %w", err)
	}

	b.logger.Info("export: looking for download link")
	if err := pollClick(ctx, downloadLinks, wait); err != nil {
		return "", err
	}

	b.logger.Info("export: downloading file")
	return WaitForDownload(ctx, downloadDir, baseline, 2*wait, pollInterval)
}

// step runs actions bounded by timeout.
func (b *BrowserExporter) step(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

func clickFirst(ctx context.Context, xpaths []string) (bool, error) {
	for _, xp := range xpaths {
		var ok bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(clickScript, strconv.Quote(xp)), &ok)); err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func pollClick(ctx context.Context, xpaths []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		found, err := clickFirst(ctx, xpaths)
		if err == nil && found {
			return nil
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: download link after %s", ErrElementNotFound, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func waitForLocation(ctx context.Context, fragment string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var loc string
		if err := chromedp.Run(ctx, chromedp.Location(&loc)); err == nil && strings.Contains(loc, fragment) {
			return nil
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

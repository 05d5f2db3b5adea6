package pack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrChromeUnavailable is returned when no headless Chrome binary is found.
var ErrChromeUnavailable = errors.New("chrome not available for pdf rendering")

// PDFRenderer prints the HTML templates to A4 PDF through headless Chrome.
type PDFRenderer struct {
	html       *HTMLRenderer
	execPath   string
	timeout    time.Duration
	lookupPath func(string) (string, error)
}

type PDFOption func(*PDFRenderer)

func WithChromePath(path string) PDFOption {
	return func(r *PDFRenderer) {
		r.execPath = path
	}
}

func WithRenderTimeout(d time.Duration) PDFOption {
	return func(r *PDFRenderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewPDFRenderer(html *HTMLRenderer, opts ...PDFOption) *PDFRenderer {
	r := &PDFRenderer{
		html:       html,
		timeout:    30 * time.Second,
		lookupPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PDFRenderer) MimeType() string  { return "application/pdf" }
func (r *PDFRenderer) Extension() string { return "pdf" }

// chromePath resolves the configured binary or the usual Chromium names.
func (r *PDFRenderer) chromePath() (string, error) {
	if r.execPath != "" {
		return r.execPath, nil
	}
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if p, err := r.lookupPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrChromeUnavailable
}

func (r *PDFRenderer) Render(ctx context.Context, name string, view any) ([]byte, error) {
	html, err := r.html.Render(ctx, name, view)
	if err != nil {
		return nil, err
	}
	path, err := r.chromePath()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	// PathEscape encodes spaces as %20, which data URLs require.
	dataURL := "data:text/html;charset=utf-8," + url.PathEscape(string(html))

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.6).
				WithMarginLeft(0.7).
				WithMarginRight(0.7).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print %s to pdf: %w", name, err)
	}
	return pdf, nil
}

// Package pdfgen renders plain document text to PDF using a headless
// browser's print engine. Requires Chrome/Chromium on the system.
package pdfgen

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultTimeout bounds a single render.
const DefaultTimeout = 30 * time.Second

// Letter-size page with 0.75in margins, matching the service's CV layout.
const (
	paperWidthInches  = 8.5
	paperHeightInches = 11.0
	marginInches      = 0.75
)

// Renderer produces PDFs from document text.
type Renderer interface {
	Render(ctx context.Context, text, title string) ([]byte, error)
}

// ChromeRenderer renders via headless Chrome's PrintToPDF.
type ChromeRenderer struct {
	timeout time.Duration
}

// NewChromeRenderer creates a renderer with the default timeout.
func NewChromeRenderer() *ChromeRenderer {
	return &ChromeRenderer{timeout: DefaultTimeout}
}

// Render converts text to a one-column PDF document.
func (r *ChromeRenderer) Render(ctx context.Context, text, title string) ([]byte, error) {
	html := BuildHTML(text, title)
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(paperWidthInches).
				WithPaperHeight(paperHeightInches).
				WithMarginTop(marginInches).
				WithMarginBottom(marginInches).
				WithMarginLeft(marginInches).
				WithMarginRight(marginInches).
				WithPrintBackground(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("PDF rendering failed: %w", err)
	}

	log.Printf("[pdfgen] rendered %q: %d bytes", title, len(pdf))
	return pdf, nil
}

package render

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"fintel/internal/core"
)

// PDF renders the report through headless Chromium. Requires a Chrome
// or Chromium binary on the host.
func PDF(ctx context.Context, rep core.Report) ([]byte, error) {
	htmlDoc, err := HTML(rep)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if path := detectChromePath(); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

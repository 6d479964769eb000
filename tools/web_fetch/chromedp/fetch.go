package chromedp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch/htmlmd"
)

// Fetch renders pages in headless Chrome, for documentation hosts that build
// their markdown views client-side.
type Fetch struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	Converter *htmlmd.Converter
}

func (f *Fetch) Exec(ctx context.Context, url string) (models.FetchResult, error) {
	if strings.TrimSpace(url) == "" {
		return models.FetchResult{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, text, err := f.render(ctx, url)
	if err != nil {
		return models.FetchResult{URL: url, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, err
	}
	if f.MaxBytes > 0 && int64(len(html)) > f.MaxBytes {
		return models.FetchResult{URL: url, Status: 200}, fmt.Errorf("content exceeds %d bytes", f.MaxBytes)
	}

	result := models.FetchResult{URL: url, Status: 200, ContentType: "text/html", Body: text}
	// Browsers wrap raw markdown in a <pre>; only rich pages need conversion.
	if f.Converter != nil && !isPlainTextView(html) {
		title, markdown, err := f.Converter.Convert(html, url)
		if err != nil {
			return result, fmt.Errorf("convert html: %w", err)
		}
		result.Title, result.Body, result.Converted = title, markdown, true
	}
	result.RenderMS = int(time.Since(t0) / time.Millisecond)
	return result, nil
}

func (f *Fetch) render(ctx context.Context, url string) (html, text string, err error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if f.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.UserAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	err = chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	return html, text, err
}

func isPlainTextView(html string) bool {
	lower := strings.ToLower(html)
	i := strings.Index(lower, "<body")
	if i < 0 {
		return false
	}
	body := strings.TrimSpace(lower[i:])
	if j := strings.IndexByte(body, '>'); j >= 0 {
		body = strings.TrimSpace(body[j+1:])
	}
	return strings.HasPrefix(body, "<pre")
}

package web_fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch/htmlmd"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch/httpget"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 10 << 20
)

// WebFetcher retrieves one document. Implementations return an error for
// transport failures and non-200 responses.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.FetchResult, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// Options configures a fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	Client    *http.Client // optional, http fetcher only
}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	converter := htmlmd.NewConverter()

	switch fetcherType {
	case HTTPFetcherType, "":
		client := opts.Client
		if client == nil {
			client = httpget.NewClient(opts.Timeout)
		}
		return &httpget.Fetch{Client: client, UserAgent: opts.UserAgent, MaxBytes: opts.MaxBytes, Converter: converter}, nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: opts.Timeout, UserAgent: opts.UserAgent, MaxBytes: opts.MaxBytes, Converter: converter}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", fetcherType)
	}
}

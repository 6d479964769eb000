// Package httpget fetches documents over plain HTTP.
package httpget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch/htmlmd"
)

// NewClient returns an http.Client with connection reuse and timeout.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

type Fetch struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
	Converter *htmlmd.Converter // nil keeps HTML bodies as-is
}

func (f *Fetch) Exec(ctx context.Context, url string) (models.FetchResult, error) {
	if strings.TrimSpace(url) == "" {
		return models.FetchResult{}, errors.New("invalid url")
	}
	t0 := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.FetchResult{}, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/markdown,text/plain;q=0.9,text/html;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8")

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.FetchResult{}, err
	}
	defer resp.Body.Close()

	result := models.FetchResult{URL: url, Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type")}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return result, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return result, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return result, fmt.Errorf("content exceeds %d bytes", limit)
	}

	result.Body = string(body)
	if f.Converter != nil && htmlmd.IsHTML(result.ContentType, result.Body) {
		title, markdown, err := f.Converter.Convert(result.Body, url)
		if err != nil {
			return result, fmt.Errorf("convert html: %w", err)
		}
		result.Title, result.Body, result.Converted = title, markdown, true
	}
	result.RenderMS = int(time.Since(t0) / time.Millisecond)
	return result, nil
}

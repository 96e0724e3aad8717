package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"top8scraper/internal/config"
)

type httpSource struct {
	client *resty.Client
}

func newHTTPSource(cfg *config.Config) *httpSource {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     cfg.HTTP.MaxConnections,
		MaxIdleConns:        cfg.HTTP.MaxConnections,
		MaxIdleConnsPerHost: cfg.HTTP.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
	}

	client := resty.New().
		SetTransport(transport).
		SetBaseURL(cfg.Site.BaseURL).
		SetTimeout(cfg.GetRequestTimeout()).
		SetHeader("User-Agent", cfg.HTTP.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return &httpSource{client: client}
}

func (s *httpSource) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req := s.client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	res, err := req.Get(path)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, &StatusError{StatusCode: res.StatusCode(), URL: res.Request.URL}
	}
	return decodeBody(res.Body(), res.Header().Get("Content-Type"))
}

// decodeBody converts a page to UTF-8 using the declared or sniffed charset.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("unsupported page charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return decoded, nil
}

func (s *httpSource) close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}

package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"top8scraper/internal/config"
)

// Chrome net errors that mean the peer went away and a retry may succeed.
var browserDisconnects = []string{
	"ERR_CONNECTION_RESET",
	"ERR_CONNECTION_CLOSED",
	"ERR_CONNECTION_REFUSED",
	"ERR_CONNECTION_ABORTED",
	"ERR_EMPTY_RESPONSE",
	"ERR_TIMED_OUT",
}

// browserSource renders pages in headless Chrome.
type browserSource struct {
	launcher    *launcher.Launcher
	browser     *rod.Browser
	baseURL     string
	pageTimeout time.Duration
}

func newBrowserSource(cfg *config.Config) (*browserSource, error) {
	l := launcher.New().Headless(true)
	if cfg.Fetch.Rod.ChromePath != "" {
		l = l.Bin(cfg.Fetch.Rod.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}

	return &browserSource{
		launcher:    l,
		browser:     browser,
		baseURL:     cfg.Site.BaseURL,
		pageTimeout: cfg.GetRodPageTimeout(),
	}, nil
}

func (s *browserSource) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	target, err := buildURL(s.baseURL, path, params)
	if err != nil {
		return nil, err
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, classifyBrowserError(err)
	}
	defer page.Close()

	p := page.Context(ctx).Timeout(s.pageTimeout)
	if err := p.Navigate(target); err != nil {
		return nil, classifyBrowserError(err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, classifyBrowserError(err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, classifyBrowserError(err)
	}
	return []byte(html), nil
}

func (s *browserSource) close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	return err
}

func classifyBrowserError(err error) error {
	msg := err.Error()
	for _, code := range browserDisconnects {
		if strings.Contains(msg, code) {
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}
	return err
}

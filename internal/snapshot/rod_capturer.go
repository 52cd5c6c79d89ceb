package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// BrowserConfig configures the headless browser
type BrowserConfig struct {
	// ControlURL connects to an already running browser when set.
	ControlURL     string
	Bin            string
	ViewportWidth  int
	ViewportHeight int
	Timeout        time.Duration
}

// RodCapturer captures elements with a headless Chromium driven by rod.
type RodCapturer struct {
	cfg     BrowserConfig
	logger  *zap.Logger
	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodCapturer creates a capturer; the browser starts on first use.
func NewRodCapturer(cfg BrowserConfig, logger *zap.Logger) *RodCapturer {
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = 1800
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodCapturer{cfg: cfg, logger: logger}
}

func (c *RodCapturer) connect(ctx context.Context) (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		if _, err := c.browser.Version(); err == nil {
			return c.browser, nil
		}
		c.logger.Warn("stale browser connection, reconnecting")
		_ = c.browser.Close()
		c.browser = nil
	}

	controlURL := c.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		if c.cfg.Bin != "" {
			l = l.Bin(c.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	c.browser = browser
	return browser, nil
}

// CaptureElement opens target.URL, waits for it to load and screenshots the
// element with id target.ElementID.
func (c *RodCapturer) CaptureElement(ctx context.Context, target Target, scale float64) (*Capture, error) {
	browser, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	err = proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.ViewportWidth,
		Height:            c.cfg.ViewportHeight,
		DeviceScaleFactor: scale,
		Mobile:            false,
	}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	page = page.Timeout(c.cfg.Timeout)
	if err := page.Navigate(target.URL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", target.URL, err)
	}

	has, el, err := page.Has(fmt.Sprintf("[id=%q]", target.ElementID))
	if err != nil {
		return nil, fmt.Errorf("query element: %w", err)
	}
	if !has {
		return nil, ErrElementNotFound
	}

	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("screenshot element: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return &Capture{Image: img, Width: cfg.Width, Height: cfg.Height}, nil
}

// Close shuts the browser down.
func (c *RodCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	return err
}

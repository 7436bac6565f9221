package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"go.uber.org/zap"

	"redads-automation/internal/core"
	"redads-automation/internal/stealth"
	"redads-automation/pkg/utils"
)

const (
	elementTimeout = 10 * time.Second
	probeTimeout   = 2 * time.Second
)

var errNotInitialized = errors.New("browser not initialized")

// Instance wraps a Rod browser and implements core.BrowserPort
type Instance struct {
	browser *rod.Browser
	page    *rod.Page
	stealth *stealth.Stealth
	config  *core.Config
	logger  *zap.Logger
	mouseX  float64
	mouseY  float64
}

// NewInstance creates a new browser instance
func NewInstance(cfg *core.Config, stealthEngine *stealth.Stealth, logger *zap.Logger) *Instance {
	return &Instance{
		stealth: stealthEngine,
		config:  cfg,
		logger:  logger,
	}
}

// Initialize launches Chromium, opens a stealth page and routes downloads
// into the configured download directory
func (b *Instance) Initialize(ctx context.Context) error {
	if b.page != nil {
		return nil
	}

	l := launcher.New().
		Context(ctx).
		Headless(b.config.Browser.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-features", "VizDisplayCompositor")

	if b.config.Browser.Bin != "" {
		l = l.Bin(b.config.Browser.Bin)
	} else if browserPath, has := launcher.LookPath(); has {
		l = l.Bin(browserPath)
	}

	browserURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	b.browser = browser

	b.page, err = rodstealth.Page(b.browser)
	if err != nil {
		return fmt.Errorf("failed to create stealth page: %w", err)
	}

	width, height := b.config.Stealth.ViewportWidth, b.config.Stealth.ViewportHeight
	if err := b.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  width,
		Height: height,
	}); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}
	b.mouseX = float64(width) / 2
	b.mouseY = float64(height) / 2

	downloadDir, err := filepath.Abs(b.config.Download.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve download dir: %w", err)
	}
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}
	err = proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath:  downloadDir,
		EventsEnabled: true,
	}.Call(b.browser)
	if err != nil {
		return fmt.Errorf("failed to set download behavior: %w", err)
	}

	b.logger.Info("Browser initialized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.String("download_dir", downloadDir),
		zap.Bool("headless", b.config.Browser.Headless),
	)

	return nil
}

// Pause sleeps for a randomized duration
func (b *Instance) Pause(ctx context.Context, minSeconds, maxSeconds float64) {
	b.stealth.Pause(ctx, minSeconds, maxSeconds)
}

// Navigate loads url. Page-load timeouts are retried with exponential
// backoff; after the last attempt the error wraps utils.ErrRetriesExhausted.
func (b *Instance) Navigate(ctx context.Context, url string) error {
	if b.page == nil {
		return errNotInitialized
	}

	b.logger.Info("Going to url", zap.String("url", url))

	nav := b.config.Navigation
	policy := utils.RetryPolicy{
		MaxAttempts: nav.MaxAttempts,
		Initial:     nav.BackoffInitial,
		Max:         nav.BackoffMax,
	}

	err := utils.Retry(ctx, policy, isTimeout,
		func(attempt int, err error, wait time.Duration) {
			b.logger.Warn("Timeout loading page, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", nav.MaxAttempts),
				zap.Duration("backoff", wait),
			)
		},
		func(ctx context.Context) error {
			p := b.page.Context(ctx).Timeout(nav.PageLoadTimeout)
			defer p.CancelTimeout()

			if err := p.Navigate(url); err != nil {
				return err
			}
			return p.WaitLoad()
		},
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	settle := nav.Settle.Seconds()
	b.stealth.Pause(ctx, settle, settle*1.2)
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

// element waits up to timeout for selector and returns it bound to ctx
func (b *Instance) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	if b.page == nil {
		return nil, errNotInitialized
	}

	p := b.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	var (
		elem *rod.Element
		err  error
	)
	if isXPath(selector) {
		elem, err = p.ElementX(selector)
	} else {
		elem, err = p.Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}

	return elem.Context(ctx), nil
}

// Click moves the mouse along a humanized path to the element centre and
// clicks it with trusted CDP input events
func (b *Instance) Click(ctx context.Context, selector string) error {
	elem, err := b.element(ctx, selector, elementTimeout)
	if err != nil {
		return err
	}

	if err := elem.ScrollIntoView(); err != nil {
		b.logger.Debug("Failed to scroll element into view", zap.String("selector", selector), zap.Error(err))
	}

	shape, err := elem.Shape()
	if err != nil {
		return fmt.Errorf("failed to get element position: %w", err)
	}
	box := shape.Box()
	if box == nil {
		return fmt.Errorf("element has no box: %s", selector)
	}
	targetX := box.X + box.Width/2
	targetY := box.Y + box.Height/2

	points := b.stealth.MousePath(b.mouseX, b.mouseY, targetX, targetY)

	moveDelay := func() time.Duration {
		return time.Duration(b.stealth.Jitter().Intn(5, 15)) * time.Millisecond
	}
	if b.config.Stealth.DebugStealth {
		b.logger.Info("Stealth Debug: Mouse path", zap.Int("points", len(points)))
		moveDelay = func() time.Duration { return 50 * time.Millisecond }
	}

	for _, p := range points {
		err := proto.InputDispatchMouseEvent{
			Type: proto.InputDispatchMouseEventTypeMouseMoved,
			X:    p.X,
			Y:    p.Y,
		}.Call(b.page)
		if err != nil {
			b.logger.Debug("Failed to move mouse", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(moveDelay()):
		}
	}
	b.mouseX, b.mouseY = targetX, targetY

	b.stealth.Pause(ctx, 0.1, 0.2)

	for _, typ := range []proto.InputDispatchMouseEventType{
		proto.InputDispatchMouseEventTypeMousePressed,
		proto.InputDispatchMouseEventTypeMouseReleased,
	} {
		err := proto.InputDispatchMouseEvent{
			Type:       typ,
			X:          targetX,
			Y:          targetY,
			Button:     proto.InputMouseButtonLeft,
			ClickCount: 1,
		}.Call(b.page)
		if err != nil {
			return fmt.Errorf("failed to click %s: %w", selector, err)
		}
		if typ == proto.InputDispatchMouseEventTypeMousePressed {
			b.stealth.Pause(ctx, 0.05, 0.1)
		}
	}

	return nil
}

// Type clicks the element to focus it and types text with humanized cadence
func (b *Instance) Type(ctx context.Context, selector string, text string) error {
	elem, err := b.element(ctx, selector, elementTimeout)
	if err != nil {
		return err
	}

	if err := b.Click(ctx, selector); err != nil {
		return fmt.Errorf("failed to focus element: %w", err)
	}

	actions, err := b.stealth.TypingActions(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to generate typing actions: %w", err)
	}

	for _, action := range actions {
		if action.Key == stealth.KeyBackspace {
			if err := b.page.Keyboard.Press(input.Backspace); err != nil {
				return fmt.Errorf("failed to press backspace: %w", err)
			}
		} else if err := elem.Input(action.Key); err != nil {
			return fmt.Errorf("failed to input key: %w", err)
		}

		delay := action.Delay
		if b.config.Stealth.DebugStealth {
			delay *= 5
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil
}

// WaitForElement waits for an element to appear with timeout
func (b *Instance) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := b.element(ctx, selector, timeout)
	return err
}

// GetText extracts text content from an element
func (b *Instance) GetText(ctx context.Context, selector string) (string, error) {
	elem, err := b.element(ctx, selector, elementTimeout)
	if err != nil {
		return "", err
	}

	text, err := elem.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// ElementExists checks if an element exists on the page
func (b *Instance) ElementExists(ctx context.Context, selector string) (bool, error) {
	if b.page == nil {
		return false, errNotInitialized
	}

	if _, err := b.element(ctx, selector, probeTimeout); err != nil {
		return false, nil // absent, not an error
	}
	return true, nil
}

// GetCurrentURL returns the current page URL
func (b *Instance) GetCurrentURL(ctx context.Context) (string, error) {
	if b.page == nil {
		return "", errNotInitialized
	}

	info, err := b.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page info: %w", err)
	}

	return info.URL, nil
}

// SaveCookies saves browser cookies to a file
func (b *Instance) SaveCookies(ctx context.Context, path string) error {
	if b.page == nil {
		return errNotInitialized
	}
	if path == "" {
		return nil
	}

	cookies, err := b.page.Context(ctx).Cookies([]string{})
	if err != nil {
		return fmt.Errorf("failed to get cookies: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cookies directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}

	b.logger.Info("Cookies saved", zap.String("path", path))
	return nil
}

// LoadCookies loads browser cookies from a file
func (b *Instance) LoadCookies(ctx context.Context, path string) error {
	if b.page == nil {
		return errNotInitialized
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		b.logger.Info("Cookies file not found, skipping load", zap.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cookies file: %w", err)
	}

	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("failed to unmarshal cookies: %w", err)
	}

	if err := b.page.Context(ctx).SetCookies(proto.CookiesToParams(cookies)); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	b.logger.Info("Cookies loaded", zap.String("path", path), zap.Int("count", len(cookies)))
	return nil
}

// Close closes the browser instance
func (b *Instance) Close(ctx context.Context) error {
	if b.browser == nil {
		return nil
	}

	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}

	b.logger.Info("Browser closed")
	return nil
}

package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/ctrldoc/masthead"
)

// A4 paper and print margins, in inches.
const (
	paperWidthIn   = 8.27
	paperHeightIn  = 11.69
	marginTopIn    = 1.9
	marginBottomIn = 1.3
	marginSideIn   = 0.5
)

// ChromeConfig configures the primary renderer.
type ChromeConfig struct {
	// Bin is the browser executable. Empty = $CHROME_PATH, then a
	// lookup of installed browsers. Nothing is downloaded.
	Bin string

	// RemoteURL connects to an already running browser (DevTools
	// websocket URL) instead of launching one.
	RemoteURL string

	// NoSandbox disables the Chrome sandbox (containers running as root).
	NoSandbox bool

	// ContentTimeout bounds content loading and idle wait. Default: 30s.
	ContentTimeout time.Duration

	// RenderTimeout bounds the whole conversion. Default: 120s.
	RenderTimeout time.Duration

	Logger *slog.Logger
}

func (c *ChromeConfig) defaults() {
	if c.ContentTimeout <= 0 {
		c.ContentTimeout = 30 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Chrome renders the themed HTML page to PDF with a headless browser.
// Each Render call launches its own browser and releases it before
// returning, so concurrent calls share nothing.
type Chrome struct {
	cfg    ChromeConfig
	logger *slog.Logger
}

// NewChrome creates a primary renderer.
func NewChrome(cfg ChromeConfig) *Chrome {
	cfg.defaults()
	return &Chrome{cfg: cfg, logger: cfg.Logger.With("component", "render.chrome")}
}

// Tag returns TagFinal.
func (c *Chrome) Tag() Tag { return TagFinal }

// Render prints job to PDF.
func (c *Chrome) Render(ctx context.Context, job *Job) (pdf []byte, err error) {
	defer func() {
		// rod reports some protocol failures by panicking.
		if r := recover(); r != nil {
			pdf = nil
			err = stageError(TagFinal, "engine", fmt.Errorf("panic: %v", r))
		}
	}()

	doc, err := buildPage(job)
	if err != nil {
		return nil, stageError(TagFinal, "markup", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RenderTimeout)
	defer cancel()

	var l *launcher.Launcher
	wsURL := c.cfg.RemoteURL
	if wsURL == "" {
		bin, err := c.browserBin()
		if err != nil {
			return nil, stageError(TagFinal, "launch", err)
		}
		l = launcher.New().Context(ctx).Bin(bin).Headless(true).Leakless(false)
		if c.cfg.NoSandbox {
			l = l.NoSandbox(true)
		}
		wsURL, err = l.Launch()
		if err != nil {
			// Launch can fail after the process started.
			if l.PID() != 0 {
				l.Kill()
			}
			return nil, stageError(TagFinal, "launch", err)
		}
		// Registered once the process exists: Cleanup waits for its exit.
		defer c.releaseLauncher(l)
	}

	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, stageError(TagFinal, "connect", err)
	}
	if l != nil {
		defer c.release("browser", browser.Close)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, stageError(TagFinal, "page", err)
	}
	defer c.release("page", page.Close)

	if err := c.load(page, doc); err != nil {
		return nil, stageError(TagFinal, "content", err)
	}

	r, err := page.PDF(&proto.PagePrintToPDF{
		DisplayHeaderFooter: true,
		PrintBackground:     true,
		PaperWidth:          inches(paperWidthIn),
		PaperHeight:         inches(paperHeightIn),
		MarginTop:           inches(marginTopIn),
		MarginBottom:        inches(marginBottomIn),
		MarginLeft:          inches(marginSideIn),
		MarginRight:         inches(marginSideIn),
		HeaderTemplate:      masthead.HeaderHTML(job.Fields),
		FooterTemplate:      masthead.FooterHTML(job.Fields),
	})
	if err != nil {
		return nil, stageError(TagFinal, "print", err)
	}
	pdf, err = io.ReadAll(r)
	if err != nil {
		return nil, stageError(TagFinal, "print", err)
	}
	if len(pdf) == 0 {
		return nil, stageError(TagFinal, "print", errors.New("engine returned an empty document"))
	}

	c.logger.DebugContext(ctx, "render: chrome printed document",
		"doc_number", job.Fields.DocNumber, "bytes", len(pdf))
	return pdf, nil
}

// load sets the document and waits until it has settled, bounded by
// ContentTimeout.
func (c *Chrome) load(page *rod.Page, doc string) error {
	p := page.Timeout(c.cfg.ContentTimeout)
	defer p.CancelTimeout()

	if err := p.SetDocumentContent(doc); err != nil {
		return err
	}
	if err := p.WaitLoad(); err != nil {
		return err
	}
	if err := p.WaitIdle(c.cfg.ContentTimeout); err != nil {
		return err
	}
	if _, err := p.Eval(`() => document.fonts.ready.then(() => true)`); err != nil {
		return err
	}
	return p.GetContext().Err()
}

// browserBin resolves the executable without ever downloading one.
func (c *Chrome) browserBin() (string, error) {
	if c.cfg.Bin != "" {
		return c.cfg.Bin, nil
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p, nil
	}
	if p, ok := launcher.LookPath(); ok {
		return p, nil
	}
	return "", ErrNoBrowser
}

func (c *Chrome) release(what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		c.logger.Warn("render: resource cleanup failed", "resource", what, "error", err)
	}
}

func (c *Chrome) releaseLauncher(l *launcher.Launcher) {
	l.Kill()
	l.Cleanup()
}

func inches(v float64) *float64 { return &v }

// Command ctrldoc renders Word documents into controlled PDFs.
//
// Usage:
//
//	ctrldoc -src sop.docx -meta meta.yaml [-copy copy.yaml]   # render one document
//	ctrldoc -batch jobs.yaml                                  # render a list of documents
//	ctrldoc -mcp                                              # serve MCP tools over stdio
//	ctrldoc -history SOP-001                                  # show recent render outcomes
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ctrldoc/config"
	"github.com/hazyhaar/ctrldoc/docpipe"
	"github.com/hazyhaar/ctrldoc/masthead"
	"github.com/hazyhaar/ctrldoc/observability"
	"github.com/hazyhaar/ctrldoc/pipeline"
	"github.com/hazyhaar/ctrldoc/render"
	"github.com/hazyhaar/ctrldoc/storage"
)

const version = "1.0.0"

const usage = "usage: ctrldoc -src <file.docx> -meta <meta.yaml> | -batch <jobs.yaml> | -mcp | -history <doc>"

// errUsage is returned by run when no mode flag was given.
var errUsage = errors.New("no mode selected")

type options struct {
	configPath string
	src        string
	metaPath   string
	copyPath   string
	documentID string
	batchPath  string
	history    string
	serveMCP   bool
	noChrome   bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to ctrldoc.yaml config file")
	flag.StringVar(&o.src, "src", "", "source .docx to render")
	flag.StringVar(&o.metaPath, "meta", "", "YAML file with the document metadata")
	flag.StringVar(&o.copyPath, "copy", "", "YAML file with the controlled-copy recipient")
	flag.StringVar(&o.documentID, "id", "", "document ID used to name the stored upload (default: doc number)")
	flag.StringVar(&o.batchPath, "batch", "", "YAML file listing documents to render")
	flag.StringVar(&o.history, "history", "", "print recent render events for a doc number (\"all\" for every document)")
	flag.BoolVar(&o.serveMCP, "mcp", false, "serve MCP tools over stdio")
	flag.BoolVar(&o.noChrome, "no-chrome", false, "skip the browser engine and use the text layout")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("ctrldoc: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.noChrome {
		cfg.Chrome.Disabled = true
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	switch {
	case o.serveMCP:
		return app.serveMCP(ctx)
	case o.history != "":
		return app.printHistory(ctx, o.history)
	case o.batchPath != "":
		return app.runBatch(ctx, o.batchPath)
	case o.src != "":
		return app.runSingle(ctx, o)
	}

	return errUsage
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.LoadFile(path)
}

type app struct {
	cfg    *config.Config
	coord  *pipeline.Coordinator
	ledger *observability.Ledger
	closer func()
	logger *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Storage.Ensure(); err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithExtractor(docpipe.New(docpipe.Config{MaxFileSize: cfg.Extract.MaxFileSize, Logger: logger})),
		pipeline.WithFallback(render.NewCompositor(render.ComposerConfig{
			WrapWidth:  cfg.Fallback.WrapWidth,
			BreakSpace: cfg.Fallback.BreakSpace,
			Logger:     logger,
		})),
	}
	if cfg.Chrome.Disabled {
		opts = append(opts, pipeline.WithPrimary(nil))
	} else {
		opts = append(opts, pipeline.WithPrimary(render.NewChrome(render.ChromeConfig{
			Bin:            cfg.Chrome.Bin,
			RemoteURL:      cfg.Chrome.Remote,
			NoSandbox:      cfg.Chrome.NoSandbox,
			ContentTimeout: cfg.Chrome.ContentTimeout,
			RenderTimeout:  cfg.Chrome.RenderTimeout,
			Logger:         logger,
		})))
	}

	a := &app{cfg: cfg, logger: logger, closer: func() {}}

	db, err := observability.Open(cfg.Ledger.Path)
	if err != nil {
		// The ledger is an audit aid; rendering works without it.
		logger.Warn("ctrldoc: ledger unavailable", "path", cfg.Ledger.Path, "error", err)
	} else {
		if err := observability.Cleanup(ctx, db, cfg.Ledger.RetentionDays, false); err != nil {
			logger.Warn("ctrldoc: ledger cleanup failed", "error", err)
		}
		a.ledger = observability.NewLedger(db, observability.WithLogger(logger))
		a.closer = func() { db.Close() }
		opts = append(opts, pipeline.WithRecorder(a.ledger))
	}

	if cfg.Blob.Enabled() {
		m, err := storage.NewBlobMirror(&cfg.Blob, logger)
		if err == nil {
			err = m.Start(ctx)
		}
		if err != nil {
			logger.Warn("ctrldoc: blob mirror disabled", "error", err)
		} else {
			opts = append(opts, pipeline.WithMirror(m))
		}
	}

	a.coord = pipeline.New(cfg.Storage, opts...)
	return a, nil
}

func (a *app) Close() { a.closer() }

func (a *app) runSingle(ctx context.Context, o options) error {
	var meta masthead.Metadata
	if o.metaPath == "" {
		return errors.New("-meta is required with -src")
	}
	if err := readYAML(o.metaPath, &meta); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	var cc *masthead.ControlCopy
	if o.copyPath != "" {
		cc = &masthead.ControlCopy{}
		if err := readYAML(o.copyPath, cc); err != nil {
			return fmt.Errorf("control copy: %w", err)
		}
	}

	// Stage the source in the uploads directory so the ledger points at a
	// stable copy.
	id := o.documentID
	if id == "" {
		id = meta.DocNumber
	}
	f, err := os.Open(o.src)
	if err != nil {
		return err
	}
	staged, err := a.cfg.Storage.SaveUpload(id, filepath.Base(o.src), f, time.Now())
	f.Close()
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}

	res, err := a.coord.Convert(ctx, pipeline.Request{SourcePath: staged, Metadata: meta, ControlCopy: cc})
	if err != nil {
		return err
	}
	return printJSON(res)
}

type batchEntry struct {
	SourcePath  string                `yaml:"source_path"`
	Metadata    masthead.Metadata     `yaml:"metadata"`
	ControlCopy *masthead.ControlCopy `yaml:"control_copy"`
}

func (a *app) runBatch(ctx context.Context, path string) error {
	var entries []batchEntry
	if err := readYAML(path, &entries); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	reqs := make([]pipeline.Request, len(entries))
	for i, e := range entries {
		reqs[i] = pipeline.Request{SourcePath: e.SourcePath, Metadata: e.Metadata, ControlCopy: e.ControlCopy}
	}

	items := a.coord.ConvertAll(ctx, reqs, a.cfg.Batch.Concurrency)
	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	a.logger.Info("ctrldoc: batch done", "total", len(items), "failed", failed)
	if err := printJSON(items); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(items))
	}
	return nil
}

func (a *app) serveMCP(ctx context.Context) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "ctrldoc",
		Version: version,
	}, nil)
	var history pipeline.History
	if a.ledger != nil {
		history = a.ledger
	}
	a.coord.RegisterMCP(srv, history)

	a.logger.Info("ctrldoc: MCP stdio server starting")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func (a *app) printHistory(ctx context.Context, docNumber string) error {
	if a.ledger == nil {
		return errors.New("ledger unavailable")
	}
	if docNumber == "all" {
		docNumber = ""
	}
	events, err := a.ledger.Recent(ctx, docNumber, 50)
	if err != nil {
		return err
	}
	return printJSON(events)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

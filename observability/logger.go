// Package observability records which engine produced which artifact in a
// SQLite ledger. Writes never block or fail a conversion.
package observability

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// RenderEvent is one conversion outcome.
type RenderEvent struct {
	ID             string
	DocNumber      string
	RevisionNo     int
	SourcePath     string
	SourceDigest   string
	Engine         string // "final", "fallback" or empty when nothing was produced
	ArtifactPath   string
	PageCount      int
	Degraded       bool
	ControlledCopy string // recipient name
	PrimaryError   string
	Error          string
	Success        bool
	Duration       time.Duration
	CreatedAt      time.Time
}

// Ledger writes render events and answers history queries.
type Ledger struct {
	db     *sql.DB
	newID  func() string
	logger *slog.Logger
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithIDGenerator sets a custom generator for event IDs.
func WithIDGenerator(gen func() string) LedgerOption {
	return func(l *Ledger) { l.newID = gen }
}

// WithLogger sets the logger used to report ledger write failures.
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger creates a ledger backed by db. Init(db) must have run.
func NewLedger(db *sql.DB, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		db: db,
		newID: func() string {
			return "rnd_" + uuid.Must(uuid.NewV7()).String()
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogRender records ev. Errors are logged, not returned: a failing ledger
// never blocks a conversion.
func (l *Ledger) LogRender(ctx context.Context, ev RenderEvent) {
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO render_events (
			event_id, doc_number, revision_no, source_path, source_digest,
			engine, artifact_path, page_count, degraded, controlled_copy,
			primary_error, error, success, duration_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.DocNumber, ev.RevisionNo, ev.SourcePath, ev.SourceDigest,
		ev.Engine, ev.ArtifactPath, ev.PageCount, ev.Degraded, ev.ControlledCopy,
		ev.PrimaryError, ev.Error, ev.Success, ev.Duration.Milliseconds(), ev.CreatedAt.UnixMilli())
	if err != nil {
		l.logger.Error("observability: render event log failed", "error", err, "doc_number", ev.DocNumber)
	}
}

// Recent returns the latest events for docNumber, newest first. An empty
// docNumber returns events for every document.
func (l *Ledger) Recent(ctx context.Context, docNumber string, limit int) ([]RenderEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT event_id, doc_number, revision_no, source_path, COALESCE(source_digest,''),
		engine, COALESCE(artifact_path,''), page_count, degraded, COALESCE(controlled_copy,''),
		COALESCE(primary_error,''), COALESCE(error,''), success, duration_ms, created_at
		FROM render_events`
	args := []any{}
	if docNumber != "" {
		q += ` WHERE doc_number = ?`
		args = append(args, docNumber)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query: %w", err)
	}
	defer rows.Close()

	var out []RenderEvent
	for rows.Next() {
		var ev RenderEvent
		var durMS, created int64
		if err := rows.Scan(&ev.ID, &ev.DocNumber, &ev.RevisionNo, &ev.SourcePath, &ev.SourceDigest,
			&ev.Engine, &ev.ArtifactPath, &ev.PageCount, &ev.Degraded, &ev.ControlledCopy,
			&ev.PrimaryError, &ev.Error, &ev.Success, &durMS, &created); err != nil {
			return nil, fmt.Errorf("observability: scan: %w", err)
		}
		ev.Duration = time.Duration(durMS) * time.Millisecond
		ev.CreatedAt = time.UnixMilli(created)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than days. Zero or negative keeps everything.
func Cleanup(ctx context.Context, db *sql.DB, days int, vacuum bool) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	if _, err := db.ExecContext(ctx, `DELETE FROM render_events WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup render_events: %w", err)
	}
	if vacuum {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}

// SourceDigest returns the hex BLAKE2b-256 digest of the file at path.
func SourceDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

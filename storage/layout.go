// Package storage owns the on-disk layout: the uploads and PDFs
// directories, the naming of files placed in them, and atomic artifact
// writes. An optional blob mirror copies artifacts to Azure Blob Storage.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the UTC, nanosecond-precision stamp used in names.
const TimestampLayout = "20060102T150405.000000000Z"

// Layout is the pair of managed directories.
type Layout struct {
	UploadsDir string `yaml:"uploads_dir" json:"uploads_dir"`
	PDFsDir    string `yaml:"pdfs_dir" json:"pdfs_dir"`
}

// DefaultLayout places both directories under root.
func DefaultLayout(root string) Layout {
	return Layout{
		UploadsDir: filepath.Join(root, "uploads"),
		PDFsDir:    filepath.Join(root, "pdfs"),
	}
}

// Ensure creates both directories. It is safe to call concurrently and
// repeatedly.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.UploadsDir, l.PDFsDir} {
		if dir == "" {
			return fmt.Errorf("storage: directory not configured")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: create %s: %w", dir, err)
		}
	}
	return nil
}

// ArtifactName returns {docNumber}_v{rev}_{tag}_{timestamp}{suffix}.pdf.
// Two calls never return the same name.
func ArtifactName(docNumber string, revision int, tag string, now time.Time) string {
	return fmt.Sprintf("%s_v%d_%s_%s%s.pdf",
		SanitizeName(docNumber), revision, tag,
		now.UTC().Format(TimestampLayout), randomSuffix())
}

// UploadName returns {documentID}_{timestamp}_{original} where original is
// reduced to its base name. Names that try to leave the directory are
// rejected.
func UploadName(documentID, original string, now time.Time) (string, error) {
	base, err := baseName(original)
	if err != nil {
		return "", err
	}
	id := SanitizeName(documentID)
	return id + "_" + now.UTC().Format(TimestampLayout) + "_" + base, nil
}

// UploadPath joins UploadName to the uploads directory.
func (l Layout) UploadPath(documentID, original string, now time.Time) (string, error) {
	name, err := UploadName(documentID, original, now)
	if err != nil {
		return "", err
	}
	return safePath(l.UploadsDir, name)
}

// SaveUpload copies r into the uploads directory and returns the path.
func (l Layout) SaveUpload(documentID, original string, r io.Reader, now time.Time) (string, error) {
	path, err := l.UploadPath(documentID, original, now)
	if err != nil {
		return "", err
	}
	if err := writeExclusive(l.UploadsDir, path, r); err != nil {
		return "", err
	}
	return path, nil
}

// WriteArtifact stores data under a fresh artifact name in the PDFs
// directory. The file appears complete or not at all and an existing
// file is never replaced.
func (l Layout) WriteArtifact(docNumber string, revision int, tag string, data []byte, now time.Time) (string, error) {
	path := filepath.Join(l.PDFsDir, ArtifactName(docNumber, revision, tag, now))
	if err := writeExclusive(l.PDFsDir, path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return path, nil
}

// writeExclusive writes r to a temp file in dir, then links it to path.
// Link fails when path exists, which rename would not.
func writeExclusive(dir, path string, r io.Reader) (err error) {
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("storage: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}

	if err = os.Link(tmpName, path); err == nil {
		os.Remove(tmpName)
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("storage: %s already exists: %w", filepath.Base(path), err)
	}
	// Filesystems without hard links.
	if _, statErr := os.Lstat(path); statErr == nil {
		return fmt.Errorf("storage: %s already exists: %w", filepath.Base(path), os.ErrExist)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// SanitizeName maps every byte outside [A-Za-z0-9._-] to '-' and strips
// leading dots.
func SanitizeName(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '-'
	}, strings.TrimSpace(s))
	mapped = strings.TrimLeft(mapped, ".")
	if mapped == "" {
		return "document"
	}
	return mapped
}

func baseName(original string) (string, error) {
	original = strings.TrimSpace(original)
	if strings.Contains(original, "..") {
		return "", ErrPathTraversal
	}
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "" || base == "." || base == "/" {
		return "", ErrInvalidName
	}
	return SanitizeName(base), nil
}

// safePath joins name to base and verifies the result stays under base.
func safePath(base, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+name))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

func randomSuffix() string {
	return "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

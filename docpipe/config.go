package docpipe

import "log/slog"

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize is the maximum source file size to process (default: 50 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// MaxPartSize caps the decompressed size of a single archive part
	// such as word/document.xml (default: 200 MB).
	MaxPartSize int64 `json:"max_part_size" yaml:"max_part_size"`

	// TableClass is the CSS class put on extracted tables (default: "doc-table").
	TableClass string `json:"table_class" yaml:"table_class"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.MaxPartSize <= 0 {
		c.MaxPartSize = 200 * 1024 * 1024
	}
	if c.TableClass == "" {
		c.TableClass = "doc-table"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

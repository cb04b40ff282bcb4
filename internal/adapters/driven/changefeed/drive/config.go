package drive

import (
	"strconv"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

// Config holds Google Drive feed configuration.
type Config struct {
	// DriveID limits syncing to one shared drive (optional). Empty means
	// the user's own corpus.
	DriveID string

	// PageSize is the page size for API requests.
	PageSize int64

	// MaxContentSize caps downloaded or exported content, in bytes.
	MaxContentSize int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PageSize:       100,
		MaxContentSize: 5 * 1024 * 1024,
	}
}

// ParseConfig extracts configuration from a source.
func ParseConfig(source domain.Source) *Config {
	cfg := DefaultConfig()

	if val := source.Config["drive_id"]; val != "" {
		cfg.DriveID = val
	}
	if val := source.Config["page_size"]; val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
	if val := source.Config["max_content_size"]; val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			cfg.MaxContentSize = n
		}
	}

	return cfg
}

package strapi

import (
	"encoding/json"

	"github.com/dustin/go-humanize"
)

// Size bands reported by debug logging, by upper bound in bytes.
const (
	bandSmall  = 10 * 1024
	bandMedium = 100 * 1024
	bandLarge  = 250 * 1024
	bandHuge   = 500 * 1024
)

// SizeBand classifies a payload size.
func SizeBand(size int) string {
	switch {
	case size < bandSmall:
		return "small"
	case size < bandMedium:
		return "medium"
	case size < bandLarge:
		return "large"
	case size < bandHuge:
		return "huge"
	default:
		return "oversized"
	}
}

// logPayloadSize logs the serialized size of what Get returns. It only
// reads the payload.
func logPayloadSize(logger Logger, target string, payload interface{}, fallback int) {
	size := fallback

	if encoded, err := json.Marshal(payload); err == nil {
		size = len(encoded)
	}

	logger.Info("Response payload", map[string]interface{}{
		"url":  target,
		"size": humanize.Bytes(uint64(size)), //nolint:gosec // size is a length
		"band": SizeBand(size),
	})
}

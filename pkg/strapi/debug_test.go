package strapi_test

import (
	"testing"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
)

func TestSizeBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size     int
		expected string
	}{
		{size: 0, expected: "small"},
		{size: 10*1024 - 1, expected: "small"},
		{size: 10 * 1024, expected: "medium"},
		{size: 100 * 1024, expected: "large"},
		{size: 250 * 1024, expected: "huge"},
		{size: 500 * 1024, expected: "oversized"},
		{size: 5 << 20, expected: "oversized"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, strapi.SizeBand(tt.size), "size %d", tt.size)
	}
}

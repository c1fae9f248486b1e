package client

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanRequestLimit(t *testing.T) {
	c := &RegionStoreClient{scanBatchSize: 100}

	tests := map[string]struct {
		limit int
		want  uint32
	}{
		"default for zero":     {0, 100},
		"default for negative": {-5, 100},
		"passed through":       {7, 7},
		"clamped above wire":   {math.MaxInt, math.MaxUint32},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := c.scanRequest([]byte("a"), 1, false, tt.limit)
			assert.Equal(t, tt.want, req.Limit)
		})
	}
}

package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)
	// 2024-05-02 17:30 UTC is already 2024-05-03 in Taipei.
	now := time.Date(2024, 5, 2, 17, 30, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"today", "2024-05-03", false},
		{"TODAY", "2024-05-03", false},
		{"今日", "2024-05-03", false},
		{"yesterday", "2024-05-02", false},
		{"昨日", "2024-05-02", false},
		{" 2024-04-30 ", "2024-04-30", false},
		{"2024-02-30", "", true},
		{"2024/05/02", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.in, taipei, now)
		if tt.wantErr {
			assert.Error(t, err, "Resolve(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "Resolve(%q)", tt.in)
		assert.Equal(t, tt.want, got, "Resolve(%q)", tt.in)
	}
}

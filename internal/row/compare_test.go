package row

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareTimestamps(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"ints", int64(1), int64(2), -1},
		{"equal", int64(2), int64(2), 0},
		{"int vs float", int64(3), 2.5, 1},
		{"missing vs zero", nil, int64(0), 0},
		{"missing vs positive", nil, int64(1), -1},
		{"missing vs negative", nil, int64(-1), 1},
		{"both missing", nil, nil, 0},
		{"numeric string", "10", int64(9), 1},
		{"times", t1, t2, -1},
		{"time string vs time", "2024-01-01 01:00:00", t1, 1},
		{"rfc3339 strings", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", -1},
		{"missing vs time", nil, t1, -1},
		{"text", "beta", "alpha", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareTimestamps(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareTimestamps_Incomparable(t *testing.T) {
	_, err := CompareTimestamps(int64(1), "yesterday")
	require.ErrorIs(t, err, ErrIncomparable)
}

func TestRow_TimestampFallback(t *testing.T) {
	assert.Equal(t, int64(5), Row{"updated_at": int64(5), "modified_at": int64(9)}.Timestamp())
	assert.Equal(t, int64(9), Row{"updated_at": nil, "modified_at": int64(9)}.Timestamp())
	assert.Nil(t, Row{"id": int64(1)}.Timestamp())
}

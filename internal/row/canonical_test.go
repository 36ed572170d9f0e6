package row

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(Row{"value": "A1", "id": int64(1), "updated_at": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"updated_at":2,"value":"A1"}`, string(got))
}

func TestMarshalCanonical_Scalars(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "null"},
		{"int", int64(42), "42"},
		{"whole float", 42.0, "42.0"},
		{"fraction", 1.5, "1.5"},
		{"exponent", 1e21, "1e+21"},
		{"string no html escape", "<a&b>", `"<a&b>"`},
		{"bytes", []byte{0x01, 0x02}, `{"$bytes":"AQI="}`},
		{"time", ts, `{"$time":"2024-05-01T12:00:00Z"}`},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_RejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestEqual_DistinguishesTypes(t *testing.T) {
	assert.True(t, Equal(Row{"id": int64(1), "v": "x"}, Row{"v": "x", "id": int64(1)}))
	assert.False(t, Equal(Row{"id": int64(1)}, Row{"id": "1"}))
	assert.False(t, Equal(Row{"id": int64(1), "v": int64(1)}, Row{"id": int64(1), "v": 1.0}))
	assert.False(t, Equal(Row{"id": int64(1), "v": []byte("x")}, Row{"id": int64(1), "v": "x"}))
}

func TestKey_NoCollisionAcrossTypes(t *testing.T) {
	k1, err := Key(int64(1))
	require.NoError(t, err)
	k2, err := Key("1")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestChecksum_OrderIndependent(t *testing.T) {
	rows := []Row{
		{"id": int64(2), "v": "b"},
		{"id": int64(1), "v": "a"},
	}
	reversed := []Row{rows[1], rows[0]}

	c1, err := Checksum(rows)
	require.NoError(t, err)
	c2, err := Checksum(reversed)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Len(t, c1, 64)

	c3, err := Checksum([]Row{{"id": int64(1), "v": "a"}})
	require.NoError(t, err)
	assert.NotEqual(t, c1, c3)
}

func TestDigest_DomainSeparated(t *testing.T) {
	r := Row{"id": int64(1)}
	d, err := Digest(r)
	require.NoError(t, err)
	c, err := Checksum([]Row{r})
	require.NoError(t, err)
	assert.NotEqual(t, d, c)
}

func TestClone_CopiesBytes(t *testing.T) {
	orig := Row{"id": int64(1), "blob": []byte("abc")}
	c := orig.Clone()
	c["blob"].([]byte)[0] = 'z'
	assert.Equal(t, []byte("abc"), orig["blob"])
}

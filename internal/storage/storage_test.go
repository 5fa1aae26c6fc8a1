package storage

import (
	"path/filepath"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name    string
	Amount  sdkmath.Int
	Unset   sdkmath.Int
	Amounts []sdkmath.Int
	At      time.Time
	Every   time.Duration
	Ptr     *record
}

type kv interface {
	Put(key string, v interface{}) error
	PutAll(entries map[string]interface{}) error
	Get(key string, v interface{}) (bool, error)
	Keys(prefix string) ([]string, error)
	Close() error
}

func roundTrip(t *testing.T, s kv) {
	t.Helper()
	big := sdkmath.NewIntWithDecimal(123456789, 60)
	at := time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)
	in := record{
		Name:    "p1",
		Amount:  big,
		Amounts: []sdkmath.Int{sdkmath.NewInt(1), sdkmath.ZeroInt()},
		At:      at,
		Every:   time.Hour,
		Ptr:     &record{Name: "child", Amount: sdkmath.NewInt(5)},
	}
	require.NoError(t, s.Put("project/1", in))
	require.NoError(t, s.PutAll(map[string]interface{}{
		"project/2": record{Name: "p2", Amount: sdkmath.NewInt(2)},
		"ledger":    record{Name: "ledger", Amount: sdkmath.ZeroInt()},
	}))

	var out record
	ok, err := s.Get("project/1", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "p1", out.Name)
	require.True(t, out.Amount.Equal(big))
	require.Len(t, out.Amounts, 2)
	require.True(t, out.Amounts[0].Equal(sdkmath.NewInt(1)))
	require.True(t, out.At.Equal(at))
	require.Equal(t, time.Hour, out.Every)
	require.NotNil(t, out.Ptr)
	require.True(t, out.Ptr.Amount.Equal(sdkmath.NewInt(5)))

	ok, err = s.Get("missing", &out)
	require.NoError(t, err)
	require.False(t, ok)

	keys, err := s.Keys("project/")
	require.NoError(t, err)
	require.Equal(t, []string{"project/1", "project/2"}, keys)
}

func TestLevelStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	s, err := OpenLevelStore(dir)
	require.NoError(t, err)
	roundTrip(t, s)
	require.NoError(t, s.Close())

	reopened, err := OpenLevelStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	var out record
	ok, err := reopened.Get("project/2", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2), out.Amount.Int64())
	// Unset ints survive as unset.
	require.True(t, out.Unset.IsNil())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	roundTrip(t, s)

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	var out record
	ok, err := reopened.Get("ledger", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ledger", out.Name)
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.BlockWritten(100)
	m.BlockWritten(50)
	m.BlockDeduped()
	m.BlockRead()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.FileWritten()

	require.Equal(t, 2.0, testutil.ToFloat64(m.blocksWritten))
	require.Equal(t, 150.0, testutil.ToFloat64(m.bytesWritten))
	require.Equal(t, 1.0, testutil.ToFloat64(m.blocksDeduped))
	require.Equal(t, 1.0, testutil.ToFloat64(m.blocksRead))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	require.Equal(t, 2.0, testutil.ToFloat64(m.cacheMisses))
	require.Equal(t, 1.0, testutil.ToFloat64(m.filesWritten))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 7)

	// a second store on the same registry collides
	_, err = New(reg)
	require.Error(t, err)
}

func TestStore_Nil(t *testing.T) {
	var m *Store
	m.BlockWritten(1)
	m.BlockDeduped()
	m.BlockRead()
	m.CacheLookup(true)
	m.FileWritten()

	m, err := New(nil)
	require.NoError(t, err)
	m.FileWritten()
	require.Equal(t, 1.0, testutil.ToFloat64(m.filesWritten))
}

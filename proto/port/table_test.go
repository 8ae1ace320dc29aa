package port

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBind(t *testing.T) {
	table, _ := New()
	require.NoError(t, table.Bind(8080))
	require.NoError(t, table.Bind(80))
	require.Equal(t, []int{80, 8080}, table.Ports())

	require.Error(t, table.Bind(80))
	require.Error(t, table.Bind(0))
	require.Error(t, table.Bind(MAX_PORT+1))
}

func TestIsBound(t *testing.T) {
	table, _ := New()
	require.True(t, table.IsBound(22), "empty table accepts every port")

	require.NoError(t, table.Bind(80))
	require.True(t, table.IsBound(80))
	require.False(t, table.IsBound(22))
}

func TestUnbind(t *testing.T) {
	table, _ := New()
	require.NoError(t, table.Bind(80))
	require.NoError(t, table.Bind(443))

	require.NoError(t, table.Unbind(80))
	require.Equal(t, []int{443}, table.Ports())
	require.Error(t, table.Unbind(80))
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminalSessionStatus(t *testing.T) {
	assert.False(t, IsTerminalSessionStatus(SessionStatusActive))
	assert.True(t, IsTerminalSessionStatus(SessionStatusCompleted))
	assert.True(t, IsTerminalSessionStatus(SessionStatusFailed))
	assert.True(t, IsTerminalSessionStatus(SessionStatusCancelled))
	assert.False(t, IsTerminalSessionStatus(""))
	assert.False(t, IsTerminalSessionStatus("COMPLETED"))
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"task_id": "task-1", "percent": float64(40)}

	value, err := m.Value()
	require.NoError(t, err)

	var decoded JSONMap
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, m, decoded)
}

func TestJSONMapScanEdgeCases(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	assert.Equal(t, JSONMap{}, m)

	require.NoError(t, m.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, float64(1), m["a"])

	require.NoError(t, m.Scan(""))
	assert.Equal(t, JSONMap{}, m)

	assert.Error(t, m.Scan(42))
}

func TestNilJSONMapValue(t *testing.T) {
	var m JSONMap
	value, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)
}

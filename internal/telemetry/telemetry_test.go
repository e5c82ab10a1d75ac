package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{TraceSampleRatio: 3}
	cfg.applyDefaults()

	require.Equal(t, "multisession", cfg.ServiceName)
	require.Equal(t, 1.0, cfg.TraceSampleRatio)

	cfg = Config{ServiceName: "svc", TraceSampleRatio: 0.25}
	cfg.applyDefaults()
	require.Equal(t, "svc", cfg.ServiceName)
	require.Equal(t, 0.25, cfg.TraceSampleRatio)
}

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.Same(t, m, GetMetrics())
	require.NotNil(t, m.ResolveTotal)
	require.NotNil(t, m.ActiveConnections)
}

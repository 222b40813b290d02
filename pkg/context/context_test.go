package context

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/grafana/symdump/pkg/test"
)

func TestLogger(t *testing.T) {
	require.Equal(t, defaultLogger, Logger(context.Background()))

	logger := test.NewTestingLogger(t)
	ctx := WithBinary(WithLogger(context.Background(), logger), "/bin/true")
	require.NoError(t, Logger(ctx).Log("msg", "hello"))

	entries := logger.Entries("")
	require.Len(t, entries, 1)
	require.Equal(t, "/bin/true", entries[0]["binary"])
}

func TestRegistry(t *testing.T) {
	require.NotNil(t, Registry(context.Background()))

	reg := prometheus.NewRegistry()
	require.Same(t, reg, Registry(WithRegistry(context.Background(), reg)))
}

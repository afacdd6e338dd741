package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveIDFromContext(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, ResolveIDFromContext(ctx))

	ctx = ContextWithResolveID(ctx, "abc-123")
	require.Equal(t, "abc-123", ResolveIDFromContext(ctx))

	require.Equal(t, ctx, ContextWithResolveID(ctx, ""), "empty id leaves ctx as is")

	//nolint:staticcheck // SA1012: nil context is handled
	require.Empty(t, ResolveIDFromContext(nil))
}

package diag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsDuplicateName(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("todos", func(ctx context.Context) error { return nil }))
	require.Error(t, d.Register("todos", func(ctx context.Context) error { return nil }))
}

func TestRunAllReportsEachCheckResult(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("ok", func(ctx context.Context) error { return nil }))
	require.NoError(t, d.Register("bad", func(ctx context.Context) error { return errBoom }))

	results := d.RunAll(context.Background())
	require.NoError(t, results["ok"])
	require.ErrorIs(t, results["bad"], errBoom)
}

func TestUnregisterRemovesCheck(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("todos", func(ctx context.Context) error { return nil }))
	d.Unregister("todos")
	require.NoError(t, d.Register("todos", func(ctx context.Context) error { return nil }))
}

var errBoom = errBoomType{}

type errBoomType struct{}

func (errBoomType) Error() string { return "boom" }

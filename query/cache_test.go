package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheWithNilClientDisablesCaching(t *testing.T) {
	cache := NewCache(nil)
	ctx := context.Background()

	rows, err := cache.GetRunningBalance(ctx, "all")
	require.NoError(t, err)
	assert.Nil(t, rows)

	// these must not panic when the client is nil
	cache.SetRunningBalance(ctx, "all", []Row{})
	cache.Invalidate(ctx, "all")
	cache.InvalidateAll(ctx)
}

func TestRunningBalanceKeyFormat(t *testing.T) {
	assert.Equal(t, "cashflow:running_balance:all", runningBalanceKey("all"))
	assert.Equal(t, "cashflow:running_balance:checking", runningBalanceKey("checking"))
}

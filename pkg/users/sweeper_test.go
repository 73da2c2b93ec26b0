package users

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/verdict/pkg/observability"
	"github.com/platinummonkey/verdict/pkg/storage"
)

func TestCodeSweeper(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewTestDB(t))
	metrics := observability.NewNopMetrics()
	logger := observability.NewLogger(observability.InfoLevel, io.Discard)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, &User{
		Username: "ann", Email: "ann@example.com", ConfirmationCode: "h", CodeIssuedAt: &issued, DateJoined: issued,
	}))

	sweeper := NewCodeSweeper(store, time.Hour, metrics, logger)

	sweeper.now = func() time.Time { return issued.Add(30 * time.Minute) }
	cleared, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cleared)

	sweeper.now = func() time.Time { return issued.Add(2 * time.Hour) }
	cleared, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CodesExpired))
}

func TestCodeSweeperStart(t *testing.T) {
	store := NewStore(storage.NewTestDB(t))
	logger := observability.NewLogger(observability.InfoLevel, io.Discard)

	err := NewCodeSweeper(store, 0, nil, logger).Start("@every 1m")
	assert.Error(t, err)

	err = NewCodeSweeper(store, time.Hour, nil, logger).Start("not a schedule")
	assert.Error(t, err)

	sweeper := NewCodeSweeper(store, time.Hour, nil, logger)
	require.NoError(t, sweeper.Start("@every 1h"))
	<-sweeper.Stop().Done()
}

package concurrency_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/accessguard/internal/rbac/concurrency"
)

func TestFanOutJoinsAllSuccesses(t *testing.T) {
	var ran int32
	err := concurrency.FanOut(context.Background(),
		func(context.Context) error { atomic.AddInt32(&ran, 1); return nil },
		func(context.Context) error { atomic.AddInt32(&ran, 1); return nil },
		func(context.Context) error { atomic.AddInt32(&ran, 1); return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ran)
}

func TestFanOutFirstErrorCancelsTheRest(t *testing.T) {
	boom := errors.New("boom")
	var sawCancel int32

	err := concurrency.FanOut(context.Background(),
		func(context.Context) error { return boom },
		func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				atomic.AddInt32(&sawCancel, 1)
			case <-time.After(time.Second):
			}
			return nil
		},
	)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), sawCancel)
}

func TestFanOutNoTasksIsNoop(t *testing.T) {
	err := concurrency.FanOut(context.Background())
	assert.NoError(t, err)
}

package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/service"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (e *countingExpirer) SweepExpired(context.Context) (service.SweepReport, error) {
	e.calls.Add(1)
	return service.SweepReport{}, e.err
}

type leaseMock struct {
	mock.Mock
}

func (m *leaseMock) Acquire(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *leaseMock) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestRun_SweepsOnStartAndOnEveryTick(t *testing.T) {
	exp := &countingExpirer{}
	r := New(exp, 10*time.Millisecond, WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRun_KeepsGoingAfterFailure(t *testing.T) {
	exp := &countingExpirer{err: errors.New("db down")}
	r := New(exp, 5*time.Millisecond, WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	assert.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestTick_Lease(t *testing.T) {
	ctx := context.Background()

	t.Run("held elsewhere", func(t *testing.T) {
		exp := &countingExpirer{}
		lease := &leaseMock{}
		lease.On("Acquire", mock.Anything).Return(false, nil).Once()

		ran := New(exp, time.Minute, WithLease(lease), WithLogger(logger.Discard())).Tick(ctx)
		assert.False(t, ran)
		assert.Zero(t, exp.calls.Load())
		lease.AssertExpectations(t)
	})

	t.Run("acquired", func(t *testing.T) {
		exp := &countingExpirer{}
		lease := &leaseMock{}
		lease.On("Acquire", mock.Anything).Return(true, nil).Once()
		lease.On("Release", mock.Anything).Return(nil).Once()

		ran := New(exp, time.Minute, WithLease(lease), WithLogger(logger.Discard())).Tick(ctx)
		assert.True(t, ran)
		assert.EqualValues(t, 1, exp.calls.Load())
		lease.AssertExpectations(t)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		exp := &countingExpirer{}
		lease := &leaseMock{}
		lease.On("Acquire", mock.Anything).Return(false, errors.New("dial tcp: refused")).Once()

		ran := New(exp, time.Minute, WithLease(lease), WithLogger(logger.Discard())).Tick(ctx)
		assert.True(t, ran)
		assert.EqualValues(t, 1, exp.calls.Load())
		lease.AssertNotCalled(t, "Release", mock.Anything)
	})
}

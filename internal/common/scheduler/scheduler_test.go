package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"whitelist-intake/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RegisterValidation(t *testing.T) {
	s := New(logger.NewTestLogger(t))

	require.NoError(t, s.Every("sync-grants-accepted", time.Second, func(ctx context.Context) error { return nil }))

	err := s.Every("sync-grants-accepted", time.Second, func(ctx context.Context) error { return nil })
	assert.Error(t, err)

	err = s.Every("zero", 0, func(ctx context.Context) error { return nil })
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"sync-grants-accepted"}, s.Jobs())
}

func TestScheduler_RunsAndSurvivesPanicsAndErrors(t *testing.T) {
	s := New(logger.NewTestLogger(t))

	var panics, failures int32
	require.NoError(t, s.Every("panicky", time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&panics, 1)
		panic("sweep exploded")
	}))
	require.NoError(t, s.Every("failing", time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&failures, 1)
		return errors.New("grant store down")
	}))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&panics) >= 2 && atomic.LoadInt32(&failures) >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := New(logger.NewTestLogger(t))

	started := make(chan struct{}, 1)
	cancelled := make(chan struct{})
	require.NoError(t, s.Every("long", time.Second, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case <-cancelled:
	default:
		t.Fatal("job context was not cancelled")
	}
}

func TestPairs(t *testing.T) {
	fields := pairs([]interface{}{"entry", 3, "next", "soon", "dangling"})
	assert.Equal(t, 3, fields["entry"])
	assert.Equal(t, "soon", fields["next"])
	assert.NotContains(t, fields, "dangling")
}

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/service"
)

// blockingSweeper holds a sweep open until its context is canceled.
type blockingSweeper struct {
	started chan struct{}
}

func (b *blockingSweeper) SlaSweep(ctx context.Context) (service.SweepResult, error) {
	close(b.started)
	<-ctx.Done()
	return service.SweepResult{}, ctx.Err()
}

type countingSweeper struct {
	calls int
}

func (c *countingSweeper) SlaSweep(context.Context) (service.SweepResult, error) {
	c.calls++
	return service.SweepResult{Escalated: 2}, nil
}

func TestStopCancelsInFlightSweep(t *testing.T) {
	sweeper := &blockingSweeper{started: make(chan struct{})}
	w := NewSweepWorker(sweeper, nil, zap.NewNop(), config.SweepConfig{
		Enabled:  true,
		CronSpec: "@every 1h",
	})
	require.NoError(t, w.Start())

	// Simulate a sweep already in flight when shutdown begins.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runOnce(w.ctx)
	}()
	<-sweeper.started

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not unblock the in-flight sweep")
	}
}

func TestStartSkippedWhenDisabled(t *testing.T) {
	w := NewSweepWorker(&countingSweeper{}, nil, zap.NewNop(), config.SweepConfig{Enabled: false})
	require.NoError(t, w.Start())
	w.Stop()
}

func TestRunNowDelegates(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewSweepWorker(sweeper, nil, zap.NewNop(), config.SweepConfig{})

	result, err := w.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Escalated)
	assert.Equal(t, 1, sweeper.calls)
}

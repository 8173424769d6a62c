package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clip-orchestrator/service"
)

type countingDispatcher struct {
	ticks atomic.Int32
}

func (d *countingDispatcher) Dispatch(ctx context.Context) (service.DispatchReport, error) {
	d.ticks.Add(1)
	return service.DispatchReport{}, nil
}

func TestRunScheduler_TicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &countingDispatcher{}

	done := make(chan struct{})
	go func() {
		runScheduler(ctx, d, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return d.ticks.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// blockingUnit runs until cancelled and records that it saw the signal.
func blockingUnit(name string, stopped *atomic.Int32) Unit {
	return Unit{Name: name, Run: func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		stopped.Add(1)
		return nil
	}}
}

func TestRunStopsAllUnitsOnCancel(t *testing.T) {
	var stopped atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, blockingUnit("relay", &stopped), blockingUnit("gateway", &stopped)) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return")
	}
	// both units finished before Run returned
	require.Equal(t, int32(2), stopped.Load())
}

func TestRunUnitsFailIndependently(t *testing.T) {
	var stopped atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	failing := Unit{Name: "relay", Run: func(ctx context.Context) error {
		return errors.New("bind: address in use")
	}}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, failing, blockingUnit("gateway", &stopped)) }()

	// the surviving unit keeps Run blocked
	select {
	case <-done:
		t.Fatal("Run returned while a unit was still running")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		require.Contains(t, err.Error(), "relay: bind: address in use")
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return")
	}
	require.Equal(t, int32(1), stopped.Load())
}

func TestRunRecoversUnitPanic(t *testing.T) {
	err := Run(context.Background(), Unit{Name: "bad", Run: func(ctx context.Context) error {
		panic("boom")
	}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad: panic: boom")
}

func TestRunReturnsWhenAllUnitsExit(t *testing.T) {
	quick := Unit{Name: "quick", Run: func(ctx context.Context) error { return nil }}
	require.NoError(t, Run(context.Background(), quick, quick))
}

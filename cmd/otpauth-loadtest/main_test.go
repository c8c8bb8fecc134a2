package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := map[int]time.Duration{0: 1, 50: 5, 95: 9, 100: 10}
	for p, want := range cases {
		if got := percentile(samples, p); got != want {
			t.Fatalf("p%d = %v, want %v", p, got, want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty percentile = %v", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	states := make([]pendingState, 4)
	calls := 0
	stats := runPhase(context.Background(), states, 40, 1, 1, func(context.Context, *pendingState) error {
		calls++
		if calls%4 == 0 {
			return errors.New("boom")
		}
		return nil
	})
	if stats.ops != 40 {
		t.Fatalf("ops = %d", stats.ops)
	}
	if stats.failures != 10 {
		t.Fatalf("failures = %d", stats.failures)
	}
}

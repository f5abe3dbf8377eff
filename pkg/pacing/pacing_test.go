package pacing

import (
	"context"
	"testing"
	"time"
)

func TestPauseZeroConfigReturnsImmediately(t *testing.T) {
	p := Pacer{}

	start := time.Now()
	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero pacer slept %v", elapsed)
	}
}

func TestPauseAppliesBaseAndJitter(t *testing.T) {
	p := Pacer{
		Base:      20 * time.Millisecond,
		JitterMin: 5 * time.Millisecond,
		JitterMax: 10 * time.Millisecond,
	}

	start := time.Now()
	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 25*time.Millisecond {
		t.Errorf("slept %v, want at least base+jitterMin (25ms)", elapsed)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("slept %v, far beyond base+jitterMax", elapsed)
	}
}

func TestPauseAtLeastRaisesFloor(t *testing.T) {
	p := Pacer{Base: 0}

	start := time.Now()
	if err := p.PauseAtLeast(context.Background(), 30*time.Millisecond); err != nil {
		t.Fatalf("PauseAtLeast failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("slept %v, want at least the 30ms floor", elapsed)
	}
}

func TestPauseAtLeastKeepsLargerBase(t *testing.T) {
	p := Pacer{Base: 40 * time.Millisecond}

	start := time.Now()
	if err := p.PauseAtLeast(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("PauseAtLeast failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("slept %v, want at least the 40ms base", elapsed)
	}
}

func TestPauseCancelled(t *testing.T) {
	p := Pacer{Base: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Pause(ctx); err == nil {
		t.Error("expected context error from cancelled pause")
	}
}

package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHealthChecker_CheckAll_HealthyWhenAllChecksPass(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("ok", func(context.Context) (bool, error) {
		return true, nil
	}, time.Second, time.Second)

	status := h.CheckAll(context.Background())

	if status.Status != "healthy" {
		t.Errorf("status = %q, want healthy", status.Status)
	}
	if status.Checks["ok"] != "healthy" {
		t.Errorf("checks[ok] = %q, want healthy", status.Checks["ok"])
	}
}

func TestHealthChecker_CheckAll_UnhealthyWhenOneCheckFails(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("ok", func(context.Context) (bool, error) {
		return true, nil
	}, time.Second, time.Second)
	h.AddCheck("broken", func(context.Context) (bool, error) {
		return false, errors.New("sink unreachable")
	}, time.Second, time.Second)

	status := h.CheckAll(context.Background())

	if status.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", status.Status)
	}
	if status.Checks["broken"] != "sink unreachable" {
		t.Errorf("checks[broken] = %q, want the check error", status.Checks["broken"])
	}
}

func TestHealthChecker_StartBackgroundChecks_RunsUntilCancelled(t *testing.T) {
	h := NewHealthChecker()
	runs := make(chan struct{}, 16)
	h.AddCheck("ticking", func(context.Context) (bool, error) {
		select {
		case runs <- struct{}{}:
		default:
		}
		return true, nil
	}, 5*time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	h.StartBackgroundChecks(ctx)

	select {
	case <-runs:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected the background check to run at least once")
	}
	cancel()
}

package main

import (
	"context"
	"testing"
)

func TestInterruptCoordinator_CleanupReleasesLock(t *testing.T) {
	dir := t.TempDir()
	wl := NewWorkspaceLock(dir)
	if err := wl.Acquire("install"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, coord := NewInterruptCoordinator(context.Background())
	coord.SetLock(wl)

	coord.Cleanup()

	if err := ctx.Err(); err == nil {
		t.Error("expected derived context to be canceled after Cleanup")
	}

	status, err := ReadWorkspaceLockStatus(dir)
	if err != nil {
		t.Fatalf("unexpected error reading lock status: %v", err)
	}
	if status != nil {
		t.Error("expected lock released after Cleanup")
	}
}

func TestInterruptCoordinator_CleanupIsIdempotent(t *testing.T) {
	_, coord := NewInterruptCoordinator(context.Background())
	coord.Cleanup()
	coord.Cleanup()
}

func TestInterruptCoordinator_StopWithoutCleanupLeavesLockHeld(t *testing.T) {
	dir := t.TempDir()
	wl := NewWorkspaceLock(dir)
	if err := wl.Acquire("install"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer wl.Release()

	_, coord := NewInterruptCoordinator(context.Background())
	coord.SetLock(wl)
	coord.Stop()

	status, err := ReadWorkspaceLockStatus(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status == nil {
		t.Error("expected lock still held after Stop (operation completed normally)")
	}
}

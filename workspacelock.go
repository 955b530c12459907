package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// WorkspaceLockInfo describes who is currently holding the workspace lock.
type WorkspaceLockInfo struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
	Operation string    `json:"operation"` // "install", "add", "remove", ...
}

// WorkspaceLock is the advisory lock at <workspace>/.dlang/.lock that
// serializes Installer operations against a single workspace (spec §5).
type WorkspaceLock struct {
	path string
	info *WorkspaceLockInfo
}

// NewWorkspaceLock creates a lock manager for the given workspace root.
func NewWorkspaceLock(workspaceRoot string) *WorkspaceLock {
	return &WorkspaceLock{
		path: filepath.Join(workspaceRoot, ".dlang", ".lock"),
	}
}

// Acquire attempts to acquire the lock atomically, removing a stale lock
// left behind by a dead or long-gone process first.
func (wl *WorkspaceLock) Acquire(operation string) error {
	if err := os.MkdirAll(filepath.Dir(wl.path), 0755); err != nil {
		return fmt.Errorf("failed to create .dlang directory: %w", err)
	}

	if wl.isHeld() {
		existing, err := wl.readLock()
		if err != nil {
			os.Remove(wl.path)
		} else if isWorkspaceLockStale(existing) {
			if err := os.Remove(wl.path); err != nil {
				return fmt.Errorf("failed to remove stale lock: %w", err)
			}
		} else {
			return &WorkspaceLockHeldError{
				PID:       existing.PID,
				Operation: existing.Operation,
				StartedAt: existing.StartedAt,
			}
		}
	}

	wl.info = &WorkspaceLockInfo{
		PID:       os.Getpid(),
		StartedAt: time.Now(),
		Operation: operation,
	}

	data, err := json.MarshalIndent(wl.info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock info: %w", err)
	}
	data = append(data, '\n')

	// O_CREATE|O_EXCL makes creation atomic: fails if another process won
	// the race between our staleness check and this create.
	f, err := os.OpenFile(wl.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return &WorkspaceLockHeldError{Operation: "unknown (race)"}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(wl.path)
		return fmt.Errorf("failed to write lock file: %w", err)
	}

	return nil
}

// Release releases the lock if this process owns it. Safe to call when the
// lock was never acquired, or was already released.
func (wl *WorkspaceLock) Release() error {
	if wl.info == nil {
		return nil
	}

	existing, err := wl.readLock()
	if err != nil {
		return nil
	}

	if existing.PID != os.Getpid() {
		return nil
	}

	return os.Remove(wl.path)
}

func (wl *WorkspaceLock) isHeld() bool {
	_, err := os.Stat(wl.path)
	return err == nil
}

func (wl *WorkspaceLock) readLock() (*WorkspaceLockInfo, error) {
	data, err := os.ReadFile(wl.path)
	if err != nil {
		return nil, err
	}

	var info WorkspaceLockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// isProcessAlive checks whether a process with the given PID is running.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes existence.
	return process.Signal(syscall.Signal(0)) == nil
}

// maxWorkspaceLockAge bounds lock age even for a live PID, guarding against
// PID reuse by the OS after a crash.
const maxWorkspaceLockAge = 24 * time.Hour

func isWorkspaceLockStale(info *WorkspaceLockInfo) bool {
	if !isProcessAlive(info.PID) {
		return true
	}
	return time.Since(info.StartedAt) > maxWorkspaceLockAge
}

// ReadWorkspaceLockStatus reads the current lock status without acquiring.
// Returns nil, nil if no lock is held.
func ReadWorkspaceLockStatus(workspaceRoot string) (*WorkspaceLockInfo, error) {
	wl := NewWorkspaceLock(workspaceRoot)
	if !wl.isHeld() {
		return nil, nil
	}
	return wl.readLock()
}


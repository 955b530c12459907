package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LockFileName is the dependency lock's canonical file name.
const LockFileName = "model.lock"

// LockSchemaVersion is the only schema version this codec accepts.
const LockSchemaVersion = "1"

// LockedDependency pins a manifest dependency to an exact, verified commit.
type LockedDependency struct {
	Ref       string `json:"ref"`
	RefType   string `json:"refType"`
	Resolved  string `json:"resolved"`
	Commit    string `json:"commit"`
	Integrity string `json:"integrity"`
}

// Lock is the in-memory form of model.lock.
type Lock struct {
	Version      string                       `json:"version"`
	Dependencies map[string]*LockedDependency `json:"dependencies"`
}

// lockOnDisk controls key ordering: encoding/json sorts map keys
// lexicographically for us, so the struct field order only matters for the
// top-level document.
type lockOnDisk struct {
	Version      string                       `json:"version"`
	Dependencies map[string]*LockedDependency `json:"dependencies"`
}

// NewLock returns an empty lock at the current schema version.
func NewLock() *Lock {
	return &Lock{Version: LockSchemaVersion, Dependencies: map[string]*LockedDependency{}}
}

// LoadLock reads model.lock from workspaceRoot. Returns (nil, nil) if the
// file does not exist — absence of a lock is not an error, callers treat a
// nil Lock as "no prior lock."
func LoadLock(workspaceRoot string) (*Lock, error) {
	path := filepath.Join(workspaceRoot, LockFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	return ParseLock(data, path)
}

// ParseLock decodes lock JSON bytes. path is used only for error messages.
func ParseLock(data []byte, path string) (*Lock, error) {
	var onDisk lockOnDisk
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, &LockInvalidError{Path: path, Reason: err.Error()}
	}
	if onDisk.Version != LockSchemaVersion {
		return nil, &LockInvalidError{Path: path, Reason: fmt.Sprintf("unsupported schema version %q", onDisk.Version)}
	}
	if onDisk.Dependencies == nil {
		onDisk.Dependencies = map[string]*LockedDependency{}
	}
	return &Lock{Version: onDisk.Version, Dependencies: onDisk.Dependencies}, nil
}

// Save serializes the lock to model.lock at workspaceRoot: JSON, 2-space
// indent, stable key ordering (dependency names sorted lexicographically,
// record fields in struct declaration order), trailing newline, written
// atomically via tmp -> rename.
func (l *Lock) Save(workspaceRoot string) error {
	path := filepath.Join(workspaceRoot, LockFileName)
	onDisk := lockOnDisk{Version: l.Version, Dependencies: l.Dependencies}
	if onDisk.Dependencies == nil {
		onDisk.Dependencies = map[string]*LockedDependency{}
	}
	return AtomicWriteJSON(path, onDisk)
}

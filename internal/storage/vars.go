package storage

import (
	"fmt"
	"strings"
)

const (
	FileMode0644 = 0o644 // rw-r--r--
	FileMode0755 = 0o755 // rwxr-xr-x
)

type StorageMode int

const (
	// File keeps every table in JSON files under a data directory.
	File StorageMode = iota + 1
)

func (s StorageMode) String() string {
	switch s {
	case File:
		return "file"
	default:
		return "unknown"
	}
}

func GetStorageMode(s string) (StorageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "file", "json":
		return File, nil
	default:
		return 0, fmt.Errorf("invalid storage mode: %s", s)
	}
}

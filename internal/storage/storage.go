package storage

import (
	"fmt"
)

// NewEngine opens the storage backend selected by mode rooted at workdir.
func NewEngine(mode StorageMode, workdir string) (Engine, error) {
	switch mode {
	case File:
		fs, err := NewFileStore(workdir)
		if err != nil {
			return nil, fmt.Errorf("error initialize file store: %w", err)
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unsupported storage mode %s", mode)
	}
}

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageWriteFailed is returned when persisting a collection fails
	// The previously committed collection is left unchanged.
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrStorageReadFailed is returned when the storage substrate cannot be read
	// Absent or undecodable data is not a read failure.
	ErrStorageReadFailed = errors.New("storage read failed")
)

// DecodeSkipped describes a persisted blob that could not be decoded and was
// treated as an empty collection
type DecodeSkipped struct {
	Key  string
	Size int
	Err  error
}

func (d *DecodeSkipped) Error() string {
	return fmt.Sprintf("skipped undecodable collection %s (%d bytes): %v", d.Key, d.Size, d.Err)
}

func (d *DecodeSkipped) Unwrap() error {
	return d.Err
}

func readFailed(key string, err error) error {
	return fmt.Errorf("%w: failed to read %s: %w", ErrStorageReadFailed, key, err)
}

// writeFailed classifies an error returned by a cache transaction
// Read failures raised inside the transaction keep their classification.
func writeFailed(what string, err error) error {
	if errors.Is(err, ErrStorageReadFailed) {
		return err
	}
	return fmt.Errorf("%w: failed to persist %s: %w", ErrStorageWriteFailed, what, err)
}

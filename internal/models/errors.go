package models

import "fmt"

// FileError pairs a per-file failure with the file it belongs to.
// Batch operations collect these alongside successes instead of
// aborting on the first failure.
type FileError struct {
	FileID string
	Err    error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.FileID, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

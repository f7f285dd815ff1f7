package sanitise

import (
	"errors"
	"fmt"

	"dump-sanitiser/internal/disk"
)

var (
	// ErrNotDirectory indicates a root that exists but is not a directory
	ErrNotDirectory = errors.New("not a directory")

	// ErrCrossDevice indicates a rename the platform refused across filesystems
	ErrCrossDevice = disk.ErrCrossDevice
)

// InvalidPathError reports a source or destination root that cannot be used.
// Nothing has been mutated when it is returned.
type InvalidPathError struct {
	Op   string
	Path string
	Err  error
	Hint string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *InvalidPathError) Unwrap() error { return e.Err }

// GetHint returns the hint for InvalidPathError
func (e *InvalidPathError) GetHint() string { return e.Hint }

// ScanError reports a failure enumerating the tree mid-walk
type ScanError struct {
	Op  string
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: scan: %v", e.Op, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// TransferError reports a failed move of a matched file. Moves made before
// it stand.
type TransferError struct {
	Op   string
	Path string
	Dest string
	Err  error
	Hint string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Path, e.Dest, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// GetHint returns the hint for TransferError
func (e *TransferError) GetHint() string { return e.Hint }

// DeletionError reports a failed delete of a junk file, system directory or
// empty directory
type DeletionError struct {
	Op   string
	Path string
	Err  error
	Hint string
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }

// GetHint returns the hint for DeletionError
func (e *DeletionError) GetHint() string { return e.Hint }

// HintableError is implemented by errors that carry a remediation hint
type HintableError interface {
	error
	GetHint() string
}

// GetHint returns the hint of the first hintable error in err's chain
func GetHint(err error) string {
	var h HintableError
	if errors.As(err, &h) {
		return h.GetHint()
	}
	return ""
}

func newTransferError(src, dst string, err error) error {
	te := &TransferError{Op: "move", Path: src, Dest: dst, Err: err}
	if disk.IsCrossDevice(err) {
		te.Hint = "source and destination are on different filesystems; extract to a directory on the same device as the dump"
	}
	return te
}

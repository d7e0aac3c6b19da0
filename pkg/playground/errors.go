package playground

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is returned when a filename is not in the workspace
	ErrFileNotFound = errors.New("file not found")

	// ErrEmptyFilename is returned when a file is added without a name
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrUnknownPendingDelete is returned for an unknown or already resolved delete handle
	ErrUnknownPendingDelete = errors.New("unknown pending delete")

	// ErrRenameTargetMissing is returned when the file to rename does not exist
	ErrRenameTargetMissing = errors.New("rename target missing")

	// ErrRenameTargetInvalid is returned when the new filename is empty or unchanged
	ErrRenameTargetInvalid = errors.New("rename target invalid")
)

// FileNotFoundError names the missing file
type FileNotFoundError struct {
	Filename string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file %q not found", e.Filename)
}

func (e *FileNotFoundError) Is(target error) bool {
	return target == ErrFileNotFound
}

// RenameError is appended to the store's error list when a rename is rejected
type RenameError struct {
	Kind        error // ErrRenameTargetMissing or ErrRenameTargetInvalid
	OldFilename string
	NewFilename string
}

func (e *RenameError) Error() string {
	if e.Kind == ErrRenameTargetMissing {
		return fmt.Sprintf(`Could not rename "%s", file not found`, e.OldFilename)
	}
	return fmt.Sprintf(`Cannot rename "%s" to "%s"`, e.OldFilename, e.NewFilename)
}

func (e *RenameError) Is(target error) bool {
	return target == e.Kind
}

package serialization

import "errors"

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrTruncated          = errors.New("file truncated")
)

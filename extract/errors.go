package extract

import "errors"

var (
	// ErrUnsupportedFormat is returned for files whose extension has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNotAFile is returned when the path names a directory.
	ErrNotAFile = errors.New("not a regular file")
)

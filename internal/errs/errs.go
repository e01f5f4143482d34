// Package errs defines the closed set of named failure conditions the
// public file system API can report, following the string-constant
// error type used throughout the driver this module is descended from.
package errs

import "fmt"

// Code is a sentinel error identifying one of the named failure conditions
// of the public API. Unlike a POSIX errno, the set is closed and specific
// to this file system: there is no general-purpose EIO or EINVAL here,
// only the conditions the spec actually distinguishes.
type Code string

func (c Code) Error() string {
	return string(c)
}

// WithMessage attaches caller-specific context (a path, an fd, a count) to
// a Code without losing the underlying sentinel: errors.Is(result, c)
// still succeeds.
func (c Code) WithMessage(message string) error {
	return &detailedError{code: c, message: message}
}

// WithMessagef is WithMessage with fmt.Sprintf-style formatting.
func (c Code) WithMessagef(format string, args ...any) error {
	return c.WithMessage(fmt.Sprintf(format, args...))
}

const (
	// General is returned when Boot or Sync fails outright.
	General = Code("boot or sync failure")
	// Create covers bad paths, duplicate names, names too long, inode
	// exhaustion, or a full directory during Create.
	Create = Code("path rejected, name collision, or directory full")
	// NoSuchFile is returned by Open or Unlink when the target is missing,
	// or by Open when the target is the wrong type.
	NoSuchFile = Code("no such file")
	// TooManyOpenFiles is returned when the file descriptor table is full.
	TooManyOpenFiles = Code("too many open files")
	// BadFD is returned for an invalid or already-closed file descriptor.
	BadFD = Code("bad file descriptor")
	// SeekOutOfBounds is returned when a seek offset is negative or past
	// the end of the file.
	SeekOutOfBounds = Code("seek offset out of bounds")
	// NoSpace is returned when the data-block allocator is exhausted.
	NoSpace = Code("no space left on device")
	// FileTooBig is returned when a write would need a 31st direct block.
	FileTooBig = Code("file too big")
	// FileInUse is returned when File_Unlink targets a file with open
	// descriptors.
	FileInUse = Code("file is in use")
	// DirNotEmpty is returned when Dir_Unlink targets a non-empty
	// directory.
	DirNotEmpty = Code("directory not empty")
	// RootDir is returned when Dir_Unlink targets "/".
	RootDir = Code("cannot unlink the root directory")
	// BufferTooSmall is returned by Dir_Read when the caller's buffer
	// can't hold every live entry.
	BufferTooSmall = Code("buffer too small")

	// NotFound is an internal sentinel used by path resolution. It is
	// never returned directly to a caller of the public API; every caller
	// of resolve/resolveParent translates it into NoSuchFile or Create
	// depending on context, matching the split the reference
	// implementation draws between internal lookup failures and the
	// public error taxonomy.
	NotFound = Code("component not found")
)

type detailedError struct {
	code    Code
	message string
}

func (e *detailedError) Error() string {
	if e.message == "" {
		return e.code.Error()
	}
	return fmt.Sprintf("%s: %s", e.code.Error(), e.message)
}

func (e *detailedError) Unwrap() error {
	return e.code
}

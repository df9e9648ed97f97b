// Package binary provides bounds-checked binary reading primitives for the
// container parsers. Every read is validated against the declared region
// before touching the underlying source, so a truncated or lying container
// can never cause a read past a logical boundary.
package binary

import (
	"fmt"
	"io"
)

// OutOfBoundsError is returned when a read would cross the end of the source
// or the declared region being parsed.
type OutOfBoundsError struct {
	Path   string
	Offset int64
	Length int
	Size   int64
	What   string // Context: what was being read
}

func (e *OutOfBoundsError) Error() string {
	if e.Offset >= e.Size {
		return fmt.Sprintf("%s: offset %d out of bounds (size: %d) while reading %s",
			e.Path, e.Offset, e.Size, e.What)
	}
	return fmt.Sprintf("%s: read of %d bytes at offset %d would exceed size %d while reading %s",
		e.Path, e.Length, e.Offset, e.Size, e.What)
}

// SafeReader wraps an io.ReaderAt with a known size and performs
// bounds-checked random-access reads.
type SafeReader struct {
	r    io.ReaderAt
	size int64
	path string
}

// NewSafeReader creates a SafeReader over r. size is the total size of the
// source; path is used for error messages only.
func NewSafeReader(r io.ReaderAt, size int64, path string) *SafeReader {
	return &SafeReader{r: r, size: size, path: path}
}

// Size returns the total size of the underlying source.
func (sr *SafeReader) Size() int64 { return sr.size }

// Path returns the path the reader was created with.
func (sr *SafeReader) Path() string { return sr.path }

// ReadAt fills buf from the given offset, failing with OutOfBoundsError if
// the read would cross the end of the source.
func (sr *SafeReader) ReadAt(buf []byte, offset int64, what string) error {
	if offset < 0 || offset+int64(len(buf)) > sr.size {
		return &OutOfBoundsError{
			Path:   sr.path,
			Offset: offset,
			Length: len(buf),
			Size:   sr.size,
			What:   what,
		}
	}
	if _, err := sr.r.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("%s: read %s at offset %d: %w", sr.path, what, offset, err)
	}
	return nil
}

// Uint is the set of unsigned integer widths the readers operate on.
type Uint interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func widthOf[T Uint]() int {
	switch any(T(0)).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}

// Read reads a big-endian unsigned integer of type T at the given offset.
func Read[T Uint](sr *SafeReader, offset int64, what string) (T, error) {
	n := widthOf[T]()
	var buf [8]byte
	if err := sr.ReadAt(buf[:n], offset, what); err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range buf[:n] {
		v = v<<8 | uint64(b)
	}
	return T(v), nil
}

// ReadLE reads a little-endian unsigned integer of type T at the given offset.
func ReadLE[T Uint](sr *SafeReader, offset int64, what string) (T, error) {
	n := widthOf[T]()
	var buf [8]byte
	if err := sr.ReadAt(buf[:n], offset, what); err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return T(v), nil
}

package widget

import (
	"bytes"
	"io"
)

// File is a raw file handle as delivered by the host's selection mechanism.
// The controller never modifies it; hooks receive the same value that was
// passed to AddFiles.
type File interface {
	Name() string
	// Type is the declared media type, e.g. "image/png".
	Type() string
	// Size is the declared size in bytes.
	Size() int64
	Open() (io.ReadCloser, error)
}

// MemoryFile is a File held entirely in memory.
type MemoryFile struct {
	name        string
	contentType string
	data        []byte
}

// NewMemoryFile returns a File backed by data.
func NewMemoryFile(name, contentType string, data []byte) *MemoryFile {
	return &MemoryFile{name: name, contentType: contentType, data: data}
}

func (f *MemoryFile) Name() string { return f.name }
func (f *MemoryFile) Type() string { return f.contentType }
func (f *MemoryFile) Size() int64  { return int64(len(f.data)) }

// Open returns a reader over the file contents.
func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// Bytes returns the underlying contents. Callers must not modify them.
func (f *MemoryFile) Bytes() []byte { return f.data }

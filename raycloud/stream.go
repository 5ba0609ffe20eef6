package raycloud

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// DefaultChunkSize is the number of rays handed to a stream visitor at a time.
const DefaultChunkSize = 1000000

// A Reader yields rays in file order. ReadChunk returns at most max rays and
// io.EOF once no rays remain. The returned chunk is only valid until the next
// call.
type Reader interface {
	ReadChunk(max int) (*Chunk, error)
	Close() error
}

// A Source can be traversed any number of times, each traversal through a new Reader.
type Source interface {
	Open() (Reader, error)
	// Kind names the storage behind the source, such as "ply" or "memory".
	Kind() string
}

// A Writer accepts rays in order. Close must be called to finish the output.
type Writer interface {
	WriteChunk(c *Chunk) error
	Close() error
}

// ForEachChunk streams src in chunks of at most chunkSize rays, calling visit on
// each in file order. Any error from reading or from visit stops the traversal
// and is returned; side effects of earlier visits must then be discarded.
func ForEachChunk(src Source, chunkSize int, visit func(c *Chunk) error) (err error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	r, err := src.Open()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close())
	}()
	for {
		chunk, err := r.ReadChunk(chunkSize)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		instrumentChunkRead(src.Kind(), chunk.Len())
		if err := visit(chunk); err != nil {
			return err
		}
	}
}

// NewSourceForFile picks a source by file extension. LAS files carry no sensor
// origin, so every ray starts at the origin given.
func NewSourceForFile(fn string, lasOrigin r3.Vector) (Source, error) {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".ply":
		return NewPLYSource(fn), nil
	case ".las", ".laz":
		return NewLASSource(fn, lasOrigin), nil
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// NewWriterForFile picks a writer by file extension.
func NewWriterForFile(fn string) (Writer, error) {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".ply":
		return NewPLYWriter(fn)
	case ".las":
		return NewLASWriter(fn)
	default:
		return nil, errors.Errorf("do not know how to write file %q", fn)
	}
}

type memorySource struct {
	cloud *Cloud
}

// NewMemorySource streams the rays of an in-memory cloud. The cloud must not
// change while a traversal is in progress.
func NewMemorySource(c *Cloud) Source {
	return &memorySource{cloud: c}
}

func (s *memorySource) Kind() string {
	return "memory"
}

func (s *memorySource) Open() (Reader, error) {
	return &memoryReader{chunk: s.cloud.chunk()}, nil
}

type memoryReader struct {
	chunk *Chunk
	next  int
}

func (r *memoryReader) ReadChunk(max int) (*Chunk, error) {
	if r.next >= r.chunk.Len() {
		return nil, io.EOF
	}
	end := r.next + max
	if end > r.chunk.Len() {
		end = r.chunk.Len()
	}
	out := r.chunk.slice(r.next, end)
	r.next = end
	return out, nil
}

func (r *memoryReader) Close() error {
	return nil
}

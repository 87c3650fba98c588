package session

import (
	"context"
	"fmt"
	"io"
)

// DefaultChunkSize is used by NewReaderStream when chunk is not positive.
const DefaultChunkSize = 256 * 1024

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

// ReadChunk fills buf from r. Unlike io.ReadFull it reports the reader's own
// error: io.EOF only when r ended cleanly, anything else (including an
// io.ErrUnexpectedEOF from a truncated body) unchanged. n may be positive
// together with a non-nil error.
func ReadChunk(r io.Reader, buf []byte) (int, error) {
	n, empty := 0, 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			empty++
			if empty >= maxEmptyReads {
				return n, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return n, nil
}

type readerStream struct {
	rc    io.ReadCloser
	size  int64
	chunk int
	read  int64
	done  bool
	err   error
}

// NewReaderStream adapts rc into a Stream that yields up to chunk bytes per
// Next call. size may be zero when unknown; when known, a reader that ends
// before size bytes fails with io.ErrUnexpectedEOF.
func NewReaderStream(rc io.ReadCloser, size int64, chunk int) Stream {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &readerStream{rc: rc, size: size, chunk: chunk}
}

func (r *readerStream) Next(ctx context.Context) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, r.chunk)
	n, err := ReadChunk(r.rc, buf)
	r.read += int64(n)
	if err == io.EOF && r.size > 0 && r.read < r.size {
		err = fmt.Errorf("stream ended at %d of %d bytes: %w", r.read, r.size, io.ErrUnexpectedEOF)
	}
	switch {
	case err == nil:
		return buf, nil
	case err == io.EOF:
		r.done = true
		if n == 0 {
			return nil, io.EOF
		}
		return buf[:n], nil
	default:
		// Sticky; bytes that arrived first are still handed back.
		r.err = err
		if n > 0 {
			return buf[:n], nil
		}
		return nil, err
	}
}

func (r *readerStream) Size() int64 {
	return r.size
}

func (r *readerStream) Close() error {
	return r.rc.Close()
}

package ctph

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	defaultCachedSize = 4 << 20
	minCachedSize     = 128 << 10
)

type hashOptions struct {
	size       int64
	cachedSize int64
	cleanup    bool
}

// Option configures Stream.
type Option interface {
	apply(*hashOptions)
}

type sizeOption int64

func (o sizeOption) apply(h *hashOptions) {
	if o > 0 {
		h.size = int64(o)
	}
}

// WithFixedSize tells Stream the exact total length of r up front, letting
// it skip buffering the input just to measure it. It is equivalent to
// calling (*State).DeclareTotalLength directly.
func WithFixedSize(size int64) Option {
	return sizeOption(size)
}

type cachedSizeOption int64

func (o cachedSizeOption) apply(h *hashOptions) {
	if o > minBlockSize {
		h.cachedSize = int64(o)
	}
}

// WithCachedSize overrides how many bytes of an unsized, unseekable reader
// Stream will buffer in memory before spilling to a temporary file.
func WithCachedSize(size int64) Option {
	return cachedSizeOption(size)
}

type cleanupOption bool

func (o cleanupOption) apply(h *hashOptions) {
	h.cleanup = bool(o)
}

// WithCleanup asks Stream to evict the temporary spill file's pages from
// the kernel page cache once hashing finishes, rather than leaving them
// resident. Only relevant when the input is large enough to spill.
func WithCleanup() Option {
	return cleanupOption(true)
}

var statePool = sync.Pool{
	New: func() any { return New() },
}

func getState() *State {
	return statePool.Get().(*State)
}

func putState(s *State) {
	s.reset()
	statePool.Put(s)
}

// sumWithKnownLength hashes all of r's bytes through a pooled State primed
// with DeclareTotalLength, so the fork/reduce engine can cap the block
// sizes it bothers tracking exactly as it would for a single-pass
// in-memory hash.
func sumWithKnownLength(r io.Reader, totalLength int64) (string, error) {
	s := getState()
	defer putState(s)

	if totalLength >= 0 {
		if err := s.DeclareTotalLength(uint64(totalLength)); err != nil {
			return "", err
		}
	}
	if _, err := io.Copy(s, r); err != nil {
		return "", err
	}
	return s.Digest(FlagElimSeq)
}

// Bytes computes the fuzzy hash of an in-memory byte slice.
func Bytes(data []byte) (string, error) {
	return sumWithKnownLength(bytes.NewReader(data), int64(len(data)))
}

// File computes the fuzzy hash of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return Stream(f)
}

type statReader interface {
	io.Reader
	Stat() (os.FileInfo, error)
}

// Stream computes the fuzzy hash of everything r produces. When r is a
// file or otherwise exposes its size (via Stat or Seek), or the caller
// supplies WithFixedSize, Stream declares that length up front so the
// engine can retire block-size hypotheses as it goes. Otherwise it
// buffers the stream (in memory up to WithCachedSize, spilling to a
// temporary file beyond that) so it can still measure the total length
// before hashing, matching what a caller who already knew the size would
// have gotten.
func Stream(r io.Reader, options ...Option) (string, error) {
	opts := hashOptions{size: -1, cachedSize: defaultCachedSize}
	for _, o := range options {
		o.apply(&opts)
	}

	if opts.size <= 0 {
		if ri, ok := r.(statReader); ok {
			info, err := ri.Stat()
			if err != nil {
				return "", err
			}
			opts.size = info.Size()
		} else if rs, ok := r.(io.ReadSeeker); ok {
			size, err := rs.Seek(0, io.SeekEnd)
			if err != nil {
				return "", err
			}
			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				return "", err
			}
			opts.size = size
		}
	}

	if opts.size >= 0 {
		return sumWithKnownLength(r, opts.size)
	}

	sr := newStreamReader(r, opts.cachedSize, opts.cleanup)
	defer sr.Close()

	if err := sr.ReadAll(); err != nil {
		return "", err
	}
	if err := sr.Reset(); err != nil {
		return "", err
	}
	return sumWithKnownLength(sr, sr.Size())
}

// streamReader caches a non-seekable reader's bytes in memory (if small)
// or a temporary file (if large), so Stream can measure the total length
// of an arbitrary io.Reader before committing to a single hashing pass.
type streamReader struct {
	r          io.Reader
	cached     []byte
	file       *os.File
	cachedSize int64
	size       int64
	offset     int64
	cleanup    bool
}

func newStreamReader(r io.Reader, cachedSize int64, cleanup bool) *streamReader {
	if cachedSize < minCachedSize {
		cachedSize = minCachedSize
	}
	return &streamReader{r: r, cachedSize: cachedSize, cleanup: cleanup}
}

// ReadAll drains the source reader into the cache, switching from memory
// to a temporary file once the cache size is exceeded.
func (sr *streamReader) ReadAll() error {
	sr.cached = make([]byte, 0, minCachedSize)
	buf := make([]byte, 32*1024)

	for {
		n, err := sr.r.Read(buf)
		if n > 0 {
			sr.size += int64(n)

			if sr.file == nil && sr.size > sr.cachedSize {
				if err := sr.switchToFile(); err != nil {
					return err
				}
			}

			if sr.file != nil {
				if _, werr := sr.file.Write(buf[:n]); werr != nil {
					return werr
				}
			} else {
				sr.cached = append(sr.cached, buf[:n]...)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (sr *streamReader) switchToFile() error {
	f, err := os.CreateTemp("", "ctph-*")
	if err != nil {
		return err
	}
	sr.file = f

	if len(sr.cached) > 0 {
		if _, err := sr.file.Write(sr.cached); err != nil {
			sr.file.Close()
			os.Remove(sr.file.Name())
			return err
		}
		sr.cached = nil
	}
	return nil
}

// Reset rewinds the cache to the beginning for a second read pass.
func (sr *streamReader) Reset() error {
	sr.offset = 0
	if sr.file != nil {
		_, err := sr.file.Seek(0, io.SeekStart)
		return err
	}
	return nil
}

func (sr *streamReader) Read(p []byte) (int, error) {
	if sr.file != nil {
		n, err := sr.file.Read(p)
		sr.offset += int64(n)
		return n, err
	}
	if sr.offset >= int64(len(sr.cached)) {
		return 0, io.EOF
	}
	n := copy(p, sr.cached[sr.offset:])
	sr.offset += int64(n)
	return n, nil
}

// Size returns the total number of bytes read from the source reader.
func (sr *streamReader) Size() int64 {
	return sr.size
}

// Close releases the temporary file, if one was created, optionally
// evicting its pages from the kernel page cache first.
func (sr *streamReader) Close() error {
	if sr.file != nil {
		if sr.cleanup {
			fd := int(sr.file.Fd())
			syscall.Fdatasync(fd)
			unix.Fadvise(fd, 0, 0, unix.FADV_DONTNEED)
		}
		name := sr.file.Name()
		sr.file.Close()
		os.Remove(name)
	}
	sr.cached = nil
	return nil
}

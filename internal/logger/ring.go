package logger

import (
	"bytes"
	"sync"
)

// Ring is an in-memory log of bounded size. When a write would exceed the
// bound, whole lines are evicted from the front.
type Ring struct {
	mu   sync.Mutex
	size int
	buf  []byte
}

// NewRing returns a Ring holding at most size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{size: size, buf: make([]byte, 0, size)}
}

func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	if n >= r.size {
		// Keep the tail of an oversized write, starting at a line boundary if there is one.
		tail := p[n-r.size:]
		if i := bytes.IndexByte(tail, '\n'); i >= 0 && i < len(tail)-1 {
			tail = tail[i+1:]
		}
		r.buf = append(r.buf[:0], tail...)
		return n, nil
	}

	if overflow := len(r.buf) + n - r.size; overflow > 0 {
		cut := overflow
		if i := bytes.IndexByte(r.buf[overflow:], '\n'); i >= 0 {
			cut = overflow + i + 1
		}
		if cut > len(r.buf) {
			cut = len(r.buf)
		}
		r.buf = append(r.buf[:0], r.buf[cut:]...)
	}

	r.buf = append(r.buf, p...)
	return n, nil
}

// String returns the current contents.
func (r *Ring) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.buf)
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

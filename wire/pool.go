package wire

import (
	"bytes"
	"sync"
)

// maxRetainedBuffer is the largest scratch buffer kept for reuse.
const maxRetainedBuffer = 1 << 20

// BufferPool hands out scratch buffers used to measure length-delimited
// payloads before their length prefix is written. Buffers are acquired and
// released in strict last-in-first-out order, matching the nesting of
// embedded message encodes.
//
// A BufferPool is not safe for concurrent use; give each goroutine its own.
type BufferPool struct {
	free  []*bytes.Buffer
	inUse []*bytes.Buffer
}

// NewBufferPool returns an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Acquire returns an empty buffer. It must be handed back with Release
// before any buffer acquired earlier is released.
func (p *BufferPool) Acquire() *bytes.Buffer {
	var buf *bytes.Buffer
	if n := len(p.free); n > 0 {
		buf = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		buf = bytes.NewBuffer(make([]byte, 0, 512))
	}
	p.inUse = append(p.inUse, buf)
	return buf
}

// Release returns the most recently acquired buffer to the pool. Releasing
// any other buffer panics.
func (p *BufferPool) Release(buf *bytes.Buffer) {
	n := len(p.inUse)
	if n == 0 || p.inUse[n-1] != buf {
		panic("wire: scratch buffer released out of order")
	}
	p.inUse[n-1] = nil
	p.inUse = p.inUse[:n-1]
	if buf.Cap() > maxRetainedBuffer {
		return
	}
	buf.Reset()
	p.free = append(p.free, buf)
}

// With runs fn with a scratch buffer and releases it on every exit path.
func (p *BufferPool) With(fn func(buf *bytes.Buffer) error) error {
	buf := p.Acquire()
	defer p.Release(buf)
	return fn(buf)
}

// Outstanding reports how many buffers are currently acquired.
func (p *BufferPool) Outstanding() int {
	return len(p.inUse)
}

// pools lends a BufferPool to top-level calls that do not bring their own,
// so concurrent encodes never share one.
var pools = sync.Pool{
	New: func() any {
		return NewBufferPool()
	},
}

func getPool() *BufferPool {
	return pools.Get().(*BufferPool)
}

func putPool(p *BufferPool) {
	if p.Outstanding() != 0 {
		return
	}
	pools.Put(p)
}

// Package bufpool recycles the fixed-size chunk buffers used to stream file
// payloads.
//
// Every transfer on every connection needs one chunk buffer for its
// lifetime. Pooling them by size keeps a busy server from allocating a fresh
// buffer per transfer.
//
// # Usage
//
//	buf := bufpool.Get(chunkSize)
//	defer bufpool.Put(buf)
package bufpool

import "sync"

// DefaultChunkSize is the payload chunk used by GET and PUT (8 KiB).
const DefaultChunkSize = 8 << 10

// maxPooledSize bounds the buffers kept alive by the pool. Larger requests
// are allocated directly and left to the garbage collector.
const maxPooledSize = 4 << 20

// Pool hands out buffers of a single size.
type Pool struct {
	size int
	pool sync.Pool
}

// New returns a Pool of size-byte buffers. A size of zero or less selects
// DefaultChunkSize.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultChunkSize
	}
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, p.size)
		return &buf
	}
	return p
}

// Size returns the length of buffers handed out by p.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a buffer of exactly Size() bytes.
func (p *Pool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put returns buf to the pool. Buffers of a different capacity are dropped.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

var pools sync.Map // int -> *Pool

func poolFor(size int) *Pool {
	if p, ok := pools.Load(size); ok {
		return p.(*Pool)
	}
	p, _ := pools.LoadOrStore(size, New(size))
	return p.(*Pool)
}

// Get returns a size-byte buffer from the shared pool for that size.
func Get(size int) []byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if size > maxPooledSize {
		return make([]byte, size)
	}
	return poolFor(size).Get()
}

// Put returns a buffer obtained from Get.
func Put(buf []byte) {
	if buf == nil || cap(buf) > maxPooledSize {
		return
	}
	if p, ok := pools.Load(cap(buf)); ok {
		p.(*Pool).Put(buf)
	}
}

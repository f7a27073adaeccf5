package tensor

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// minPoolBucket is the smallest pooled allocation; smaller buffers are
// rounded up so tiny per-step tensors share one bucket.
const minPoolBucket = 64

// bufferPool recycles tensor byte buffers in power-of-two buckets.
type bufferPool struct {
	mu      sync.Mutex
	buckets map[int]*sync.Pool

	reused   atomic.Int64
	recycled atomic.Int64
}

var defaultPool = &bufferPool{buckets: make(map[int]*sync.Pool)}

// PoolStats reports how many buffers were returned to and reused from the pool.
type PoolStats struct {
	Recycled int64
	Reused   int64
}

// BufferPoolStats returns a snapshot of the global buffer pool counters.
func BufferPoolStats() PoolStats {
	return PoolStats{
		Recycled: defaultPool.recycled.Load(),
		Reused:   defaultPool.reused.Load(),
	}
}

func bucketFor(size int) int {
	if size <= minPoolBucket {
		return minPoolBucket
	}
	return 1 << bits.Len(uint(size-1))
}

func (p *bufferPool) bucket(size int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.buckets[size]
	if !ok {
		sp = &sync.Pool{}
		p.buckets[size] = sp
	}
	return sp
}

// get returns a zeroed buffer of exactly size bytes.
func (p *bufferPool) get(size int) []byte {
	bucket := bucketFor(size)
	if v, ok := p.bucket(bucket).Get().(*[]byte); ok {
		buf := (*v)[:size]
		clear(buf)
		p.reused.Add(1)
		return buf
	}
	return make([]byte, size, bucket)
}

// put hands a buffer back. Buffers whose capacity is not a bucket size
// did not come from the pool and are left to the garbage collector.
func (p *bufferPool) put(buf []byte) {
	c := cap(buf)
	if c < minPoolBucket || c != bucketFor(c) {
		return
	}
	buf = buf[:c]
	p.bucket(c).Put(&buf)
	p.recycled.Add(1)
}

package wire

import (
	"math/bits"
	"sync"
)

// Bulk data attached to records is allocated from power of two size
// classes so that a steady stream of per frame uploads reuses memory
// once the executor releases it.
const (
	minClassBits = 6
	maxClassBits = 26
)

var blobPools [maxClassBits - minClassBits + 1]sync.Pool

func sizeClass(n int) int {
	if n <= 1<<minClassBits {
		return 0
	}
	return bits.Len(uint(n-1)) - minClassBits
}

// Alloc returns a slice of length n for attaching to a record. Memory
// comes from a pool and goes back there through Free.
func Alloc(n int) []byte {
	class := sizeClass(n)
	if class >= len(blobPools) {
		return make([]byte, n)
	}
	if p, ok := blobPools[class].Get().(*[]byte); ok {
		return (*p)[:n]
	}
	return make([]byte, n, 1<<(class+minClassBits))
}

// Free returns p to the pool. p must not be used afterwards.
func Free(p []byte) {
	c := cap(p)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	class := sizeClass(c)
	if class >= len(blobPools) || c != 1<<(class+minClassBits) {
		return
	}
	p = p[:0]
	blobPools[class].Put(&p)
}

// Clone copies data into pooled memory
func Clone(data []byte) []byte {
	if data == nil {
		return nil
	}
	p := Alloc(len(data))
	copy(p, data)
	return p
}

// Package wire implements the frame command stream: a fixed capacity byte
// buffer that one goroutine fills with tagged records and another replays.
//
// A record is a one byte Tag followed by the fixed size little endian
// payload of that tag. A frame ends with TagEnd. There are no length
// prefixes, a reader has to know every payload layout, which is why
// every command type declares its layout exactly once and both Encode
// and Decode are driven from that declaration.
//
// Bulk data (buffer contents, pixels) and shader descriptors do not go
// through the byte stream. They are attached to the Buffer and the record
// carries a reference, so the producer hands over ownership without a copy.
package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/devblok/framewire/core"
)

// DefaultCapacity is the frame capacity used when none is configured
const DefaultCapacity = 1 << 20

// ErrNotWritable is the panic value of writes to a buffer that was not started
var ErrNotWritable = errors.New("wire: write to a buffer outside Start and Finish")

// OverflowError is the panic value of a write that would run past the capacity
type OverflowError struct {
	Capacity int
	Cursor   int
	Write    int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("wire: frame overflow, writing %d bytes at %d exceeds capacity %d", e.Write, e.Cursor, e.Capacity)
}

// Buffer holds one frame of records. A Buffer alternates between a
// writing phase (Start ... Finish) and a reading phase (Reset, Read).
// It is not safe for concurrent use, ownership passes between the
// producer and the executor through the handoff.
type Buffer struct {
	// data has one byte past capacity, reserved for the End tag
	data     []byte
	capacity int
	cursor   int
	size     int
	writable bool

	blobs    [][]byte
	programs []*core.ShaderInfo
}

// NewBuffer allocates a buffer holding up to capacity bytes of records.
// The new buffer is finished and holds an empty frame.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		data:     make([]byte, capacity+1),
		capacity: capacity,
		writable: true,
	}
	b.Finish()
	return b
}

// Start opens the buffer for writing a new frame. Attachments that were
// never decoded from the previous frame are handed to Free, the buffer
// owns them since Encode.
func (b *Buffer) Start() {
	b.cursor = 0
	b.size = 0
	b.writable = true
	for i, blob := range b.blobs {
		if blob != nil {
			Free(blob)
		}
		b.blobs[i] = nil
	}
	b.blobs = b.blobs[:0]
	for i := range b.programs {
		b.programs[i] = nil
	}
	b.programs = b.programs[:0]
}

// Write appends p at the cursor. It panics with *OverflowError when p
// does not fit and with ErrNotWritable outside Start and Finish.
func (b *Buffer) Write(p []byte) {
	if !b.writable {
		panic(ErrNotWritable)
	}
	if b.cursor+len(p) > b.capacity {
		panic(&OverflowError{Capacity: b.capacity, Cursor: b.cursor, Write: len(p)})
	}
	b.cursor += copy(b.data[b.cursor:], p)
}

// WriteByte appends a single byte, with the same rules as Write
func (b *Buffer) WriteByte(c byte) error {
	if !b.writable {
		panic(ErrNotWritable)
	}
	if b.cursor+1 > b.capacity {
		panic(&OverflowError{Capacity: b.capacity, Cursor: b.cursor, Write: 1})
	}
	b.data[b.cursor] = c
	b.cursor++
	return nil
}

// Finish terminates the frame with TagEnd and rewinds for reading.
// The terminator always fits, even into a full buffer.
func (b *Buffer) Finish() {
	if !b.writable {
		return
	}
	b.data[b.cursor] = byte(TagEnd)
	b.size = b.cursor + 1
	b.cursor = 0
	b.writable = false
}

// Reopen makes a finished frame that was never read writable again.
// Writing continues after its last record.
func (b *Buffer) Reopen() {
	if b.writable {
		return
	}
	b.cursor = b.size - 1
	b.size = 0
	b.writable = true
}

// Reset rewinds the cursor so the frame can be read from the start
func (b *Buffer) Reset() {
	b.cursor = 0
}

// Read returns the next n bytes of the frame and advances. The returned
// slice aliases the buffer and is only valid until the next Start.
func (b *Buffer) Read(n int) ([]byte, error) {
	if b.writable {
		return nil, errors.New("wire: read from an unfinished frame")
	}
	if b.cursor+n > b.size {
		return nil, io.ErrUnexpectedEOF
	}
	p := b.data[b.cursor : b.cursor+n]
	b.cursor += n
	return p, nil
}

// Cap is the number of record bytes a frame can hold
func (b *Buffer) Cap() int {
	return b.capacity
}

// Len is the number of bytes written so far while writing, or the size
// of the finished frame including the terminator while reading.
func (b *Buffer) Len() int {
	if b.writable {
		return b.cursor
	}
	return b.size
}

// Remaining is the number of bytes that can still be written
func (b *Buffer) Remaining() int {
	if !b.writable {
		return 0
	}
	return b.capacity - b.cursor
}

// Bytes returns the finished frame. It aliases the buffer.
func (b *Buffer) Bytes() []byte {
	if b.writable {
		return nil
	}
	return b.data[:b.size]
}

func (b *Buffer) attachBlob(p []byte) uint32 {
	if p == nil {
		return 0
	}
	b.blobs = append(b.blobs, p)
	return uint32(len(b.blobs))
}

func (b *Buffer) detachBlob(ref uint32) ([]byte, error) {
	if ref == 0 {
		return nil, nil
	}
	if int(ref) > len(b.blobs) || b.blobs[ref-1] == nil {
		return nil, fmt.Errorf("wire: dangling data reference %d", ref)
	}
	p := b.blobs[ref-1]
	b.blobs[ref-1] = nil
	return p, nil
}

func (b *Buffer) attachProgram(si core.ShaderInfo) uint32 {
	b.programs = append(b.programs, &si)
	return uint32(len(b.programs))
}

func (b *Buffer) detachProgram(ref uint32) (core.ShaderInfo, error) {
	if ref == 0 || int(ref) > len(b.programs) || b.programs[ref-1] == nil {
		return core.ShaderInfo{}, fmt.Errorf("wire: dangling shader reference %d", ref)
	}
	si := b.programs[ref-1]
	b.programs[ref-1] = nil
	return *si, nil
}

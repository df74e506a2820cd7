package wire

import (
	"encoding/binary"
	"math"

	"github.com/devblok/framewire/core"
)

// coder visits the fields of a payload in wire order. The encoder reads
// through the pointers and appends, the decoder fills them in.
type coder interface {
	u8(v *uint8)
	u16(v *uint16)
	u32(v *uint32)
	i32(v *int32)
	f32(v *float32)
	blob(v *[]byte)
	program(v *core.ShaderInfo)
}

type encoder struct {
	buf *Buffer
	tmp [4]byte
}

func (e *encoder) u8(v *uint8) {
	e.buf.WriteByte(*v)
}

func (e *encoder) u16(v *uint16) {
	binary.LittleEndian.PutUint16(e.tmp[:2], *v)
	e.buf.Write(e.tmp[:2])
}

func (e *encoder) u32(v *uint32) {
	binary.LittleEndian.PutUint32(e.tmp[:], *v)
	e.buf.Write(e.tmp[:])
}

func (e *encoder) i32(v *int32) {
	u := uint32(*v)
	e.u32(&u)
}

func (e *encoder) f32(v *float32) {
	u := math.Float32bits(*v)
	e.u32(&u)
}

func (e *encoder) blob(v *[]byte) {
	ref := e.buf.attachBlob(*v)
	e.u32(&ref)
}

func (e *encoder) program(v *core.ShaderInfo) {
	ref := e.buf.attachProgram(*v)
	e.u32(&ref)
}

// decoder stops at the first error and leaves the remaining fields zero
type decoder struct {
	buf *Buffer
	err error
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return nil
	}
	p, err := d.buf.Read(n)
	if err != nil {
		d.err = err
		return nil
	}
	return p
}

func (d *decoder) u8(v *uint8) {
	if p := d.read(1); p != nil {
		*v = p[0]
	}
}

func (d *decoder) u16(v *uint16) {
	if p := d.read(2); p != nil {
		*v = binary.LittleEndian.Uint16(p)
	}
}

func (d *decoder) u32(v *uint32) {
	if p := d.read(4); p != nil {
		*v = binary.LittleEndian.Uint32(p)
	}
}

func (d *decoder) i32(v *int32) {
	var u uint32
	d.u32(&u)
	*v = int32(u)
}

func (d *decoder) f32(v *float32) {
	var u uint32
	d.u32(&u)
	*v = math.Float32frombits(u)
}

func (d *decoder) blob(v *[]byte) {
	var ref uint32
	d.u32(&ref)
	if d.err != nil {
		return
	}
	*v, d.err = d.buf.detachBlob(ref)
}

func (d *decoder) program(v *core.ShaderInfo) {
	var ref uint32
	d.u32(&ref)
	if d.err != nil {
		return
	}
	*v, d.err = d.buf.detachProgram(ref)
}

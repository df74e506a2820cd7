package core

import (
	"encoding/binary"
	"image"
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// GetPixels transforms a given image into tightly packed RGBA pixels
// by drawing the decoded image onto a controlled RGBA canvas
func GetPixels(img image.Image) []uint8 {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*bounds.Dx() && bounds.Min == (image.Point{}) {
		return rgba.Pix
	}
	newImg := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(newImg, newImg.Bounds(), img, bounds.Min, draw.Src)
	return newImg.Pix
}

// Float32Bytes packs floats little endian, the layout buffers are uploaded in
func Float32Bytes(floats []float32) []byte {
	data := make([]byte, 4*len(floats))
	for i, f := range floats {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(f))
	}
	return data
}

// BytesFloat32 is the inverse of Float32Bytes. Trailing bytes that do
// not make a whole float are ignored.
func BytesFloat32(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return floats
}

// Mat4Bytes packs a column major matrix for a uniform buffer
func Mat4Bytes(m glm.Mat4) []byte {
	return Float32Bytes(m[:])
}

// BytesMat4 reads a matrix written by Mat4Bytes. ok is false when
// data is too short to hold one.
func BytesMat4(data []byte) (m glm.Mat4, ok bool) {
	if len(data) < 16*4 {
		return glm.Ident4(), false
	}
	copy(m[:], BytesFloat32(data[:16*4]))
	return m, true
}

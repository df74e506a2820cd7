package model

import (
	"encoding/binary"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/handle"
)

// Object represents the engine supported model
type Object interface {

	// SetPosition sets the object's current position in space.
	// Has to be thread-safe
	SetPosition(glm.Mat4)

	// Position gets the object's current position in space.
	// Has to be thread-safe
	Position() glm.Mat4

	// SetRotation sets the object's rotation matrix.
	// Has to be thread-safe
	SetRotation(glm.Mat4)

	// Rotation gets the object's rotation matrix.
	// Has to be thread-safe
	Rotation() glm.Mat4

	// Mesh returns the geometry of the object
	Mesh() *Mesh
}

// Vertex is a model vertex in the layout every vertex buffer uses
type Vertex struct {
	Pos       glm.Vec3
	UV        glm.Vec2
	Normal    glm.Vec3
	Tangent   glm.Vec3
	Bitangent glm.Vec3
}

func (v *Vertex) put(floats []float32) {
	copy(floats[core.VertexPositionOffset:], v.Pos[:])
	copy(floats[core.VertexUVOffset:], v.UV[:])
	copy(floats[core.VertexNormalOffset:], v.Normal[:])
	copy(floats[core.VertexTangentOffset:], v.Tangent[:])
	copy(floats[core.VertexBitangentOffset:], v.Bitangent[:])
}

// Mesh is a triangle list, optionally indexed
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// VertexBytes encodes the vertices for a vertex buffer
func (m *Mesh) VertexBytes() []byte {
	floats := make([]float32, len(m.Vertices)*core.VertexFloats)
	for i := range m.Vertices {
		m.Vertices[i].put(floats[i*core.VertexFloats:])
	}
	return core.Float32Bytes(floats)
}

// IndexBytes encodes the indices for an index buffer
func (m *Mesh) IndexBytes() []byte {
	data := make([]byte, 4*len(m.Indices))
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(data[4*i:], idx)
	}
	return data
}

// Elements is the number of vertices a draw of the mesh covers
func (m *Mesh) Elements() uint32 {
	if len(m.Indices) > 0 {
		return uint32(len(m.Indices))
	}
	return uint32(len(m.Vertices))
}

// Recorder records buffer uploads for the render thread
type Recorder interface {
	CreateBuffer() handle.Buffer
	UpdateBuffer(h handle.Buffer, data []byte, usage core.BufferUsage)
}

// Upload records the creation of the mesh's buffers. indices is
// handle.Invalid for meshes without indices.
func (m *Mesh) Upload(r Recorder) (vertices, indices handle.Buffer) {
	vertices = r.CreateBuffer()
	r.UpdateBuffer(vertices, m.VertexBytes(), core.StaticBuffer)
	if len(m.Indices) > 0 {
		indices = r.CreateBuffer()
		r.UpdateBuffer(indices, m.IndexBytes(), core.StaticBuffer)
	}
	return vertices, indices
}

// Quad is a two triangle square spanning -1 to 1 on x and y, facing +z
func Quad() *Mesh {
	corner := func(x, y float32) Vertex {
		return Vertex{
			Pos:       glm.Vec3{x, y, 0},
			UV:        glm.Vec2{(x + 1) / 2, (y + 1) / 2},
			Normal:    glm.Vec3{0, 0, 1},
			Tangent:   glm.Vec3{1, 0, 0},
			Bitangent: glm.Vec3{0, 1, 0},
		}
	}
	return &Mesh{
		Vertices: []Vertex{corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Uniform defines a model-view-projection object
type Uniform struct {
	Model      glm.Mat4
	View       glm.Mat4
	Projection glm.Mat4
}

// MVP is the combined transform
func (u *Uniform) MVP() glm.Mat4 {
	return u.Projection.Mul4(u.View).Mul4(u.Model)
}

// Bytes encodes the combined transform for a uniform buffer
func (u *Uniform) Bytes() []byte {
	return core.Mat4Bytes(u.MVP())
}

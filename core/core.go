// Package core holds the value types shared between the frame producer,
// the wire format and the executing device, plus engine configuration.
package core

import (
	glm "github.com/go-gl/mathgl/mgl32"
)

// BufferUsage is a hint on how often buffer contents change
type BufferUsage uint8

// Buffer usage hints
const (
	StaticBuffer BufferUsage = iota
	DynamicBuffer
)

func (u BufferUsage) String() string {
	if u == DynamicBuffer {
		return "dynamic"
	}
	return "static"
}

// TextureFormat identifies the pixel format of a texture
type TextureFormat uint8

// Texture formats. NoTexture marks an absent render target attachment.
const (
	SRGBA8 TextureFormat = iota
	RGBA8
	R8
	Depth
	NoTexture
)

var textureFormatNames = [...]string{"SRGBA8", "RGBA8", "R8", "Depth", "None"}

func (f TextureFormat) String() string {
	if int(f) < len(textureFormatNames) {
		return textureFormatNames[f]
	}
	return "unknown"
}

// BytesPerPixel returns the number of bytes one texel takes in client memory
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case R8:
		return 1
	case NoTexture:
		return 0
	default:
		return 4
	}
}

// RenderTargetTexture selects one attachment of a render target
type RenderTargetTexture uint8

// Render target attachments
const (
	ColorAttachment RenderTargetTexture = iota
	DepthAttachment
	AuxAttachment
)

func (t RenderTargetTexture) String() string {
	switch t {
	case ColorAttachment:
		return "color"
	case DepthAttachment:
		return "depth"
	case AuxAttachment:
		return "aux"
	}
	return "unknown"
}

// RenderTargetOptions describes the attachments and size of a render target
type RenderTargetOptions struct {
	Color  TextureFormat
	Depth  TextureFormat
	Aux    TextureFormat
	Width  int32
	Height int32
}

// SRGB8Depth is a render target with an sRGB color and a depth attachment
func SRGB8Depth(width, height int32) RenderTargetOptions {
	return RenderTargetOptions{
		Color:  SRGBA8,
		Depth:  Depth,
		Aux:    NoTexture,
		Width:  width,
		Height: height,
	}
}

// SRGB8DepthRGB8 is SRGB8Depth with an additional RGBA8 aux attachment
func SRGB8DepthRGB8(width, height int32) RenderTargetOptions {
	opts := SRGB8Depth(width, height)
	opts.Aux = RGBA8
	return opts
}

// Format returns the format of the given attachment
func (o RenderTargetOptions) Format(t RenderTargetTexture) TextureFormat {
	switch t {
	case ColorAttachment:
		return o.Color
	case DepthAttachment:
		return o.Depth
	case AuxAttachment:
		return o.Aux
	}
	return NoTexture
}

// ClearMask selects the buffers a clear affects
type ClearMask uint8

// Clear mask bits
const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
	ClearStencil

	ClearColorAndDepth = ClearColor | ClearDepth
	ClearAll           = ClearColor | ClearDepth | ClearStencil
)

// ClearState describes one screen clear
type ClearState struct {
	Buffers ClearMask
	Color   glm.Vec4
	Depth   float32
	Stencil int32
}

// DefaultClearState clears color and depth to white and 1
func DefaultClearState() ClearState {
	return ClearState{
		Buffers: ClearColorAndDepth,
		Color:   glm.Vec4{1, 1, 1, 1},
		Depth:   1,
	}
}

// AllBuffers is DefaultClearState that also clears stencil
func AllBuffers() ClearState {
	cs := DefaultClearState()
	cs.Buffers = ClearAll
	return cs
}

// ShaderInfo names the source files of each pipeline stage of a program.
// Empty stages are not part of the program.
type ShaderInfo struct {
	Vertex      string
	TessControl string
	TessEval    string
	Geometry    string
	Fragment    string

	// IncludeDir is searched for files named by '@' include lines
	IncludeDir string
}

// VSFS describes a program made of a vertex and a fragment stage
func VSFS(vs, fs string, includeDir ...string) ShaderInfo {
	si := ShaderInfo{
		Vertex:   vs,
		Fragment: fs,
	}
	if len(includeDir) > 0 {
		si.IncludeDir = includeDir[0]
	}
	return si
}

// Stages returns the stage sources in pipeline order, skipping empty ones
func (si ShaderInfo) Stages() []string {
	var stages []string
	for _, s := range []string{si.Vertex, si.TessControl, si.TessEval, si.Geometry, si.Fragment} {
		if s != "" {
			stages = append(stages, s)
		}
	}
	return stages
}

// Vertex layout of every vertex buffer: position, uv, normal,
// tangent and bitangent, tightly packed float32 values.
const (
	VertexPositionOffset  = 0
	VertexUVOffset        = 3
	VertexNormalOffset    = 5
	VertexTangentOffset   = 8
	VertexBitangentOffset = 11

	// VertexFloats is the number of float32 values per vertex
	VertexFloats = 14

	// VertexStride is the size of one vertex in bytes
	VertexStride = VertexFloats * 4
)

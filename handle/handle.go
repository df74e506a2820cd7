// Package handle defines the opaque resource handles the frame producer
// hands out and the executor resolves. A handle is a small integer
// index into a fixed size table, 0 is never a valid resource.
package handle

import "fmt"

// Invalid is the zero handle of every category
const Invalid = 0

// Buffer refers to a vertex, index or uniform buffer
type Buffer uint16

// Texture2D refers to a two dimensional texture
type Texture2D uint16

// ShaderProgram refers to a linked shader program
type ShaderProgram uint16

// RenderTarget refers to an offscreen render target
type RenderTarget uint16

// DefaultRenderTarget binds the window's own framebuffer
const DefaultRenderTarget RenderTarget = Invalid

// IsValid reports whether h can refer to a resource
func (h Buffer) IsValid() bool { return h != Invalid }

// IsValid reports whether h can refer to a resource
func (h Texture2D) IsValid() bool { return h != Invalid }

// IsValid reports whether h can refer to a resource
func (h ShaderProgram) IsValid() bool { return h != Invalid }

// IsValid reports whether h can refer to a resource
func (h RenderTarget) IsValid() bool { return h != Invalid }

func (h Buffer) String() string { return fmt.Sprintf("buffer#%d", uint16(h)) }
func (h Texture2D) String() string { return fmt.Sprintf("texture#%d", uint16(h)) }
func (h ShaderProgram) String() string { return fmt.Sprintf("program#%d", uint16(h)) }
func (h RenderTarget) String() string { return fmt.Sprintf("target#%d", uint16(h)) }

// Category names a kind of handle
type Category uint8

// Handle categories
const (
	BufferCategory Category = iota
	TextureCategory
	ProgramCategory
	RenderTargetCategory
)

func (c Category) String() string {
	switch c {
	case BufferCategory:
		return "buffer"
	case TextureCategory:
		return "texture"
	case ProgramCategory:
		return "shader program"
	case RenderTargetCategory:
		return "render target"
	}
	return "unknown"
}

// Limits is the table size of every category. Handles of a category
// range from 1 to the limit minus one.
type Limits struct {
	Buffers       int
	Textures      int
	Programs      int
	RenderTargets int
}

// DefaultLimits are the table sizes used when none are configured
var DefaultLimits = Limits{
	Buffers:       32000,
	Textures:      4096,
	Programs:      4096,
	RenderTargets: 4096,
}

// Max is the table size of category c, clamped to what a handle can address
func (l Limits) Max(c Category) int {
	var n int
	switch c {
	case BufferCategory:
		n = l.Buffers
	case TextureCategory:
		n = l.Textures
	case ProgramCategory:
		n = l.Programs
	case RenderTargetCategory:
		n = l.RenderTargets
	}
	if n > 1<<16 {
		n = 1 << 16
	}
	return n
}

// OrDefault replaces unset or non positive sizes with DefaultLimits
func (l Limits) OrDefault() Limits {
	if l.Buffers <= 0 {
		l.Buffers = DefaultLimits.Buffers
	}
	if l.Textures <= 0 {
		l.Textures = DefaultLimits.Textures
	}
	if l.Programs <= 0 {
		l.Programs = DefaultLimits.Programs
	}
	if l.RenderTargets <= 0 {
		l.RenderTargets = DefaultLimits.RenderTargets
	}
	return l
}

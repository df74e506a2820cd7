// Package device defines the immediate mode graphics device the executor
// drives. A Device is bound to one goroutine, the one it was created on,
// which for real devices is the only thread the graphics context is
// current on.
package device

import (
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/framewire/core"
)

// ID names a device object. 0 is the default object of a kind,
// the default framebuffer or no program.
type ID uint32

// Device errors
var (
	ErrIncompleteFramebuffer = errors.New("framebuffer is incomplete")
	ErrUnknownResource       = errors.New("unknown device resource")
)

// Initial device state, before any Set call
var (
	DefaultClearColor   = glm.Vec4{0, 0, 0, 0}
	DefaultClearDepth   = float32(1)
	DefaultClearStencil = int32(0)
)

// CompileError is returned when a program fails to load, compile or link
type CompileError struct {
	Program core.ShaderInfo
	Stage   string
	Log     string
}

func (e *CompileError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("shader program failed: %s", e.Log)
	}
	return fmt.Sprintf("shader %q failed: %s", e.Stage, e.Log)
}

// Framebuffer is an offscreen framebuffer and the textures attached to it.
// Attachments that were not requested are 0.
type Framebuffer struct {
	FBO   ID
	Color ID
	Depth ID
	Aux   ID
}

// Attachment returns the texture of attachment t
func (f Framebuffer) Attachment(t core.RenderTargetTexture) ID {
	switch t {
	case core.ColorAttachment:
		return f.Color
	case core.DepthAttachment:
		return f.Depth
	case core.AuxAttachment:
		return f.Aux
	}
	return 0
}

// Device is a graphics device with bind semantics. Methods must be
// called from the goroutine that created the device.
type Device interface {
	// CreateBuffer allocates an empty buffer object
	CreateBuffer() (ID, error)

	// BufferData sizes a buffer to size bytes and copies data into it.
	// data may be nil or shorter than size, the rest is zeroed.
	BufferData(id ID, size int, data []byte, usage core.BufferUsage) error

	// CreateTexture allocates an empty texture object
	CreateTexture() (ID, error)

	// TextureImage replaces the image of a texture
	TextureImage(id ID, width, height int, format core.TextureFormat, pixels []byte) error

	// BindTexture binds a texture to a texture unit, 0 unbinds
	BindTexture(unit int, id ID)

	// CreateProgram loads and links a shader program from its sources.
	// Failures are *CompileError.
	CreateProgram(info core.ShaderInfo) (ID, error)

	// ReloadProgram reloads a program from the sources it was created from.
	// On failure the previous program stays usable.
	ReloadProgram(id ID) error

	// UseProgram makes a program current, 0 means none
	UseProgram(id ID)

	// BindUniformBuffer binds a buffer to a uniform block slot, 0 unbinds
	BindUniformBuffer(slot int, id ID)

	// CreateFramebuffer allocates a framebuffer with the attachments of
	// opts. An incomplete framebuffer is returned together with
	// ErrIncompleteFramebuffer.
	CreateFramebuffer(opts core.RenderTargetOptions) (Framebuffer, error)

	// BindFramebuffer directs drawing, 0 is the default framebuffer
	BindFramebuffer(id ID)

	SetClearColor(c glm.Vec4)
	SetClearDepth(d float32)
	SetClearStencil(s int32)

	// Clear clears the buffers in mask of the bound framebuffer
	Clear(mask core.ClearMask)

	// Draw draws count vertices as triangles with the current program.
	// indices 0 draws without an index buffer.
	Draw(vertices, indices ID, count int) error

	// Destroy releases every object of the device
	Destroy()
}

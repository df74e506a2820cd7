package wire

import (
	"fmt"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/handle"
)

// Command is one record of a frame. The set of commands is closed, every
// implementation lives in this package and declares its payload layout
// in a single schema method used for both encoding and decoding.
type Command interface {
	Tag() Tag
	schema(c coder)
}

// Releaser is implemented by commands that own bulk data. The consumer
// of a decoded command calls Release once it no longer needs the data.
type Releaser interface {
	Release()
}

// CreateTexture2D allocates the device texture for Handle
type CreateTexture2D struct {
	Handle handle.Texture2D
}

// UploadTexture2D replaces the image of Texture. Pixels holds
// Width*Height texels of Format.
type UploadTexture2D struct {
	Texture handle.Texture2D
	Pixels  []byte
	Width   uint16
	Height  uint16
	Format  core.TextureFormat
}

// BindTexture2D binds Texture to texture Unit. Texture 0 unbinds.
type BindTexture2D struct {
	Unit    uint8
	Texture handle.Texture2D
}

// CreateBuffer allocates the device buffer for Handle
type CreateBuffer struct {
	Handle handle.Buffer
}

// UpdateBuffer sizes Buffer to Size bytes and fills it from Data.
// Nil Data only reserves storage.
type UpdateBuffer struct {
	Buffer handle.Buffer
	Data   []byte
	Size   uint32
	Usage  core.BufferUsage
}

// CreateShaderProgram loads, compiles and links the program for Handle
type CreateShaderProgram struct {
	Handle handle.ShaderProgram
	Info   core.ShaderInfo
}

// CreateRenderTarget allocates an offscreen framebuffer and its attachments
type CreateRenderTarget struct {
	Handle  handle.RenderTarget
	Options core.RenderTargetOptions
}

// BindRenderTarget directs drawing to Target, 0 is the default framebuffer
type BindRenderTarget struct {
	Target handle.RenderTarget
}

// BindRenderTargetTexture binds one attachment of Target to texture Unit
type BindRenderTargetTexture struct {
	Unit       uint8
	Target     handle.RenderTarget
	Attachment core.RenderTargetTexture
}

// ReloadShaders reloads every program from its sources
type ReloadShaders struct{}

// UseShaderProgram makes Program current for drawing
type UseShaderProgram struct {
	Program handle.ShaderProgram
}

// Draw draws Elements vertices from Vertices, indexed through Indices
// unless it is 0.
type Draw struct {
	Vertices handle.Buffer
	Indices  handle.Buffer
	Elements uint32
}

// BindUniformBuffer binds Buffer to uniform block Slot
type BindUniformBuffer struct {
	Slot   uint8
	Buffer handle.Buffer
}

// ClearScreen clears the bound framebuffer
type ClearScreen struct {
	State core.ClearState
}

// End terminates a frame
type End struct{}

func (*CreateTexture2D) Tag() Tag { return TagCreateTexture2D }
func (*UploadTexture2D) Tag() Tag { return TagUploadTexture2D }
func (*BindTexture2D) Tag() Tag { return TagBindTexture2D }
func (*CreateBuffer) Tag() Tag { return TagCreateBuffer }
func (*UpdateBuffer) Tag() Tag { return TagUpdateBuffer }
func (*CreateShaderProgram) Tag() Tag { return TagCreateShaderProgram }
func (*CreateRenderTarget) Tag() Tag { return TagCreateRenderTarget }
func (*BindRenderTarget) Tag() Tag { return TagBindRenderTarget }
func (*BindRenderTargetTexture) Tag() Tag { return TagBindRenderTargetTexture }
func (*ReloadShaders) Tag() Tag { return TagReloadShaders }
func (*UseShaderProgram) Tag() Tag { return TagUseShaderProgram }
func (*Draw) Tag() Tag { return TagDraw }
func (*BindUniformBuffer) Tag() Tag { return TagBindUniformBuffer }
func (*ClearScreen) Tag() Tag { return TagClearScreen }
func (*End) Tag() Tag { return TagEnd }

func (c *CreateTexture2D) schema(w coder) {
	w.u16((*uint16)(&c.Handle))
}

func (c *UploadTexture2D) schema(w coder) {
	w.u16((*uint16)(&c.Texture))
	w.blob(&c.Pixels)
	w.u16(&c.Width)
	w.u16(&c.Height)
	w.u8((*uint8)(&c.Format))
}

func (c *BindTexture2D) schema(w coder) {
	w.u8(&c.Unit)
	w.u16((*uint16)(&c.Texture))
}

func (c *CreateBuffer) schema(w coder) {
	w.u16((*uint16)(&c.Handle))
}

func (c *UpdateBuffer) schema(w coder) {
	w.u16((*uint16)(&c.Buffer))
	w.blob(&c.Data)
	w.u32(&c.Size)
	w.u8((*uint8)(&c.Usage))
}

func (c *CreateShaderProgram) schema(w coder) {
	w.u16((*uint16)(&c.Handle))
	w.program(&c.Info)
}

func (c *CreateRenderTarget) schema(w coder) {
	w.u16((*uint16)(&c.Handle))
	w.u8((*uint8)(&c.Options.Color))
	w.u8((*uint8)(&c.Options.Depth))
	w.u8((*uint8)(&c.Options.Aux))
	w.i32(&c.Options.Width)
	w.i32(&c.Options.Height)
}

func (c *BindRenderTarget) schema(w coder) {
	w.u16((*uint16)(&c.Target))
}

func (c *BindRenderTargetTexture) schema(w coder) {
	w.u8(&c.Unit)
	w.u16((*uint16)(&c.Target))
	w.u8((*uint8)(&c.Attachment))
}

func (*ReloadShaders) schema(coder) {}

func (c *UseShaderProgram) schema(w coder) {
	w.u16((*uint16)(&c.Program))
}

func (c *Draw) schema(w coder) {
	w.u16((*uint16)(&c.Vertices))
	w.u16((*uint16)(&c.Indices))
	w.u32(&c.Elements)
}

func (c *BindUniformBuffer) schema(w coder) {
	w.u8(&c.Slot)
	w.u16((*uint16)(&c.Buffer))
}

func (c *ClearScreen) schema(w coder) {
	w.u8((*uint8)(&c.State.Buffers))
	for i := range c.State.Color {
		w.f32(&c.State.Color[i])
	}
	w.f32(&c.State.Depth)
	w.i32(&c.State.Stencil)
}

func (*End) schema(coder) {}

// Release returns the pixels to the pool
func (c *UploadTexture2D) Release() {
	if c.Pixels != nil {
		Free(c.Pixels)
		c.Pixels = nil
	}
}

// Release returns the contents to the pool
func (c *UpdateBuffer) Release() {
	if c.Data != nil {
		Free(c.Data)
		c.Data = nil
	}
}

func newCommand(t Tag) Command {
	switch t {
	case TagCreateTexture2D:
		return new(CreateTexture2D)
	case TagUploadTexture2D:
		return new(UploadTexture2D)
	case TagBindTexture2D:
		return new(BindTexture2D)
	case TagCreateBuffer:
		return new(CreateBuffer)
	case TagUpdateBuffer:
		return new(UpdateBuffer)
	case TagCreateShaderProgram:
		return new(CreateShaderProgram)
	case TagCreateRenderTarget:
		return new(CreateRenderTarget)
	case TagBindRenderTarget:
		return new(BindRenderTarget)
	case TagBindRenderTargetTexture:
		return new(BindRenderTargetTexture)
	case TagReloadShaders:
		return new(ReloadShaders)
	case TagUseShaderProgram:
		return new(UseShaderProgram)
	case TagDraw:
		return new(Draw)
	case TagBindUniformBuffer:
		return new(BindUniformBuffer)
	case TagClearScreen:
		return new(ClearScreen)
	case TagEnd:
		return new(End)
	}
	return nil
}

// Encode appends cmd to buf. Ownership of the bulk data of cmd passes to
// buf: it goes back to the pool through Free once the decoded command is
// released, or on the next Start when it was never decoded. Pass memory
// from Alloc or Clone and do not touch it afterwards. Encoding End is a
// no-op, frames are terminated by Finish.
func Encode(buf *Buffer, cmd Command) {
	if cmd.Tag() == TagEnd {
		return
	}
	buf.WriteByte(byte(cmd.Tag()))
	cmd.schema(&encoder{buf: buf})
}

// Decode reads the next command of a finished frame. Bulk data moves
// from buf to the returned command. At the end of a frame it returns
// *End and keeps returning it.
func Decode(buf *Buffer) (Command, error) {
	d := decoder{buf: buf}
	var tag uint8
	d.u8(&tag)
	if d.err != nil {
		return nil, d.err
	}
	cmd := newCommand(Tag(tag))
	if cmd == nil {
		return nil, fmt.Errorf("wire: unknown tag %d at offset %d", tag, buf.cursor-1)
	}
	if cmd.Tag() == TagEnd {
		buf.cursor--
		return cmd, nil
	}
	cmd.schema(&d)
	if d.err != nil {
		return nil, fmt.Errorf("wire: decoding %s: %s", cmd.Tag(), d.err)
	}
	return cmd, nil
}

// DecodeAll decodes the frame in buf from the start up to End
func DecodeAll(buf *Buffer) ([]Command, error) {
	buf.Reset()
	var cmds []Command
	for {
		cmd, err := Decode(buf)
		if err != nil {
			return cmds, err
		}
		if cmd.Tag() == TagEnd {
			return cmds, nil
		}
		cmds = append(cmds, cmd)
	}
}

// Package gfx is the producer side of the renderer. A System records the
// rendering work of a frame into a buffer and hands finished frames to
// the render thread, while the next frame is recorded into a second
// buffer. Nothing in a System touches the graphics device.
package gfx

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/handle"
	"github.com/devblok/framewire/handoff"
	"github.com/devblok/framewire/wire"
)

// Submitter takes finished frames off the producer
type Submitter interface {
	// WaitAndExecute blocks until the previous frame was executed,
	// then hands buf over for execution
	WaitAndExecute(ctx context.Context, buf *wire.Buffer) error
	Shutdown() error
}

// ExhaustedError is the panic value when a handle category runs out
type ExhaustedError struct {
	Category handle.Category
	Limit    int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gfx: out of %s handles, limit is %d", e.Category, e.Limit)
}

// TextureSizeError is the panic value when a texture dimension does not
// fit the wire format
type TextureSizeError struct {
	Width, Height int
}

func (e *TextureSizeError) Error() string {
	return fmt.Sprintf("gfx: texture size %dx%d out of range", e.Width, e.Height)
}

// System records frames. It must only be used from one goroutine.
type System struct {
	sub Submitter
	log log.FieldLogger

	buffers [2]*wire.Buffer
	current int

	limits   handle.Limits
	buffer   int
	texture  int
	program  int
	target   int
	frame    uint64
	shutdown bool
}

// Init starts the render thread, runs init on it and returns a System
// submitting to that thread
func Init(cfg core.RendererConfiguration, init func() (handoff.Executor, error), logger log.FieldLogger) (*System, error) {
	thread, err := handoff.Start(init, logger)
	if err != nil {
		return nil, err
	}
	return NewSystem(thread, cfg, logger), nil
}

// NewSystem creates a System submitting frames to sub. Both frame
// buffers are allocated here, the first one is open for recording.
func NewSystem(sub Submitter, cfg core.RendererConfiguration, logger log.FieldLogger) *System {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &System{
		sub:    sub,
		log:    logger,
		limits: cfg.Limits.OrDefault(),
	}
	for i := range s.buffers {
		s.buffers[i] = wire.NewBuffer(cfg.CommandBufferSize)
	}
	s.buffers[s.current].Start()
	return s
}

func (s *System) next(counter *int, c handle.Category) int {
	limit := s.limits.Max(c)
	if *counter+1 >= limit {
		panic(&ExhaustedError{Category: c, Limit: limit})
	}
	*counter++
	return *counter
}

func (s *System) record(cmd wire.Command) {
	wire.Encode(s.buffers[s.current], cmd)
}

// CreateBuffer returns a new buffer handle
func (s *System) CreateBuffer() handle.Buffer {
	h := handle.Buffer(s.next(&s.buffer, handle.BufferCategory))
	s.record(&wire.CreateBuffer{Handle: h})
	return h
}

// CreateTexture2D returns a new texture handle
func (s *System) CreateTexture2D() handle.Texture2D {
	h := handle.Texture2D(s.next(&s.texture, handle.TextureCategory))
	s.record(&wire.CreateTexture2D{Handle: h})
	return h
}

// CreateShaderProgram returns a new program handle. Loading happens
// when the frame executes.
func (s *System) CreateShaderProgram(info core.ShaderInfo) handle.ShaderProgram {
	h := handle.ShaderProgram(s.next(&s.program, handle.ProgramCategory))
	s.record(&wire.CreateShaderProgram{Handle: h, Info: info})
	return h
}

// CreateRenderTarget returns a new render target handle
func (s *System) CreateRenderTarget(opts core.RenderTargetOptions) handle.RenderTarget {
	h := handle.RenderTarget(s.next(&s.target, handle.RenderTargetCategory))
	s.record(&wire.CreateRenderTarget{Handle: h, Options: opts})
	return h
}

// UpdateBuffer replaces the contents of h with a copy of data
func (s *System) UpdateBuffer(h handle.Buffer, data []byte, usage core.BufferUsage) {
	s.record(&wire.UpdateBuffer{Buffer: h, Data: wire.Clone(data), Size: uint32(len(data)), Usage: usage})
}

// ReserveBuffer sizes h to size zeroed bytes
func (s *System) ReserveBuffer(h handle.Buffer, size int, usage core.BufferUsage) {
	s.record(&wire.UpdateBuffer{Buffer: h, Size: uint32(size), Usage: usage})
}

// UpdateTexture2D replaces the image of h with a copy of pixels. At most
// width*height pixels of format are copied.
func (s *System) UpdateTexture2D(h handle.Texture2D, pixels []byte, width, height int, format core.TextureFormat) {
	if width < 0 || height < 0 || width > 0xffff || height > 0xffff {
		panic(&TextureSizeError{Width: width, Height: height})
	}
	n := width * height * format.BytesPerPixel()
	if len(pixels) < n {
		n = len(pixels)
	}
	s.record(&wire.UploadTexture2D{
		Texture: h,
		Pixels:  wire.Clone(pixels[:n]),
		Width:   uint16(width),
		Height:  uint16(height),
		Format:  format,
	})
}

// BindTexture2D binds h to a texture unit, handle.Invalid unbinds
func (s *System) BindTexture2D(unit uint8, h handle.Texture2D) {
	s.record(&wire.BindTexture2D{Unit: unit, Texture: h})
}

// BindUniformBuffer binds h to a uniform block slot
func (s *System) BindUniformBuffer(slot uint8, h handle.Buffer) {
	s.record(&wire.BindUniformBuffer{Slot: slot, Buffer: h})
}

// UseShaderProgram makes h current for the following draws
func (s *System) UseShaderProgram(h handle.ShaderProgram) {
	s.record(&wire.UseShaderProgram{Program: h})
}

// ReloadShaders reloads every program from its sources
func (s *System) ReloadShaders() {
	s.record(&wire.ReloadShaders{})
}

// BindRenderTarget directs the following draws into h,
// handle.DefaultRenderTarget is the screen
func (s *System) BindRenderTarget(h handle.RenderTarget) {
	s.record(&wire.BindRenderTarget{Target: h})
}

// BindRenderTargetTexture binds an attachment of h to a texture unit
func (s *System) BindRenderTargetTexture(unit uint8, h handle.RenderTarget, attachment core.RenderTargetTexture) {
	s.record(&wire.BindRenderTargetTexture{Unit: unit, Target: h, Attachment: attachment})
}

// Draw draws elements vertices of vertices as triangles, indexed by
// indices unless it is handle.Invalid
func (s *System) Draw(vertices, indices handle.Buffer, elements uint32) {
	s.record(&wire.Draw{Vertices: vertices, Indices: indices, Elements: elements})
}

// ClearScreen clears the bound render target
func (s *System) ClearScreen(state core.ClearState) {
	s.record(&wire.ClearScreen{State: state})
}

// SubmitFrame finishes the frame being recorded and hands it to the
// render thread, waiting for the previous frame to finish executing
// first. Recording continues in the other buffer.
//
// If the frame could not be handed over it stays open and the next
// SubmitFrame sends it together with whatever was recorded since.
func (s *System) SubmitFrame(ctx context.Context) error {
	buf := s.buffers[s.current]
	buf.Finish()
	size := buf.Len()
	if err := s.sub.WaitAndExecute(ctx, buf); err != nil {
		buf.Reopen()
		return err
	}
	s.frame++
	s.log.WithFields(log.Fields{"frame": s.frame, "bytes": size}).Debug("frame submitted")

	// the executor finished the other buffer before it took this one
	s.current ^= 1
	s.buffers[s.current].Start()
	return nil
}

// Frame is the number of frames submitted
func (s *System) Frame() uint64 {
	return s.frame
}

// Shutdown submits what was recorded as a last frame and stops the
// render thread
func (s *System) Shutdown(ctx context.Context) error {
	if s.shutdown {
		return s.sub.Shutdown()
	}
	s.shutdown = true
	submitErr := s.SubmitFrame(ctx)
	if err := s.sub.Shutdown(); err != nil {
		return err
	}
	return submitErr
}

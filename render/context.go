// Package render replays recorded frames against a graphics device.
//
// A Context owns the handle tables that map the handles a producer hands
// out to the objects the device allocated for them. It lives on the
// render thread, next to the device, and nothing else touches it.
package render

import (
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/device"
	"github.com/devblok/framewire/handle"
	"github.com/devblok/framewire/wire"
)

// Binding points tracked by the context
const (
	TextureUnits       = 32
	UniformBufferSlots = 32
)

// Options configure a Context
type Options struct {
	// Limits are the handle table sizes, unset sizes use the defaults
	Limits handle.Limits

	// StrictHandles turns contract violations into fatal errors.
	// Otherwise they are logged and the command is skipped.
	StrictHandles bool

	Logger log.FieldLogger
}

// BufferSlot is the state of a buffer handle
type BufferSlot struct {
	ID    device.ID
	Size  int
	Usage core.BufferUsage
}

// TextureSlot is the state of a texture handle
type TextureSlot struct {
	ID     device.ID
	Width  int
	Height int
	Format core.TextureFormat
}

// ProgramSlot is the state of a shader program handle
type ProgramSlot struct {
	ID     device.ID
	Info   core.ShaderInfo
	Loaded bool
}

// RenderTargetSlot is the state of a render target handle
type RenderTargetSlot struct {
	device.Framebuffer
	Options  core.RenderTargetOptions
	Complete bool
}

// Stats counts the work of one frame
type Stats struct {
	Commands    int
	Draws       int
	ElidedBinds int
	Skipped     int
}

// Context executes frames on a device
type Context struct {
	dev    device.Device
	log    log.FieldLogger
	strict bool

	buffers  []BufferSlot
	textures []TextureSlot
	programs []ProgramSlot
	targets  []RenderTargetSlot

	// created programs in creation order, for reloads
	created []handle.ShaderProgram

	units        [TextureUnits]device.ID
	uniforms     [UniformBufferSlots]device.ID
	clearColor   glm.Vec4
	clearDepth   float32
	clearStencil int32

	frame uint64
	stats Stats
}

// NewContext creates a context driving dev. Handle tables are allocated
// once, at their full size.
func NewContext(dev device.Device, opts Options) *Context {
	limits := opts.Limits.OrDefault()
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Context{
		dev:          dev,
		log:          logger,
		strict:       opts.StrictHandles,
		buffers:      make([]BufferSlot, limits.Max(handle.BufferCategory)),
		textures:     make([]TextureSlot, limits.Max(handle.TextureCategory)),
		programs:     make([]ProgramSlot, limits.Max(handle.ProgramCategory)),
		targets:      make([]RenderTargetSlot, limits.Max(handle.RenderTargetCategory)),
		clearColor:   device.DefaultClearColor,
		clearDepth:   device.DefaultClearDepth,
		clearStencil: device.DefaultClearStencil,
	}
}

// violation is a command that breaks the handle contract
type violation struct {
	msg string
}

func (v *violation) Error() string {
	return v.msg
}

func violationf(format string, args ...interface{}) error {
	return &violation{msg: fmt.Sprintf(format, args...)}
}

// release hands the bulk data of a finished command back to the pool,
// whichever way the command ended
var release = func(r wire.Releaser) { r.Release() }

// Execute replays the frame in buf from its start up to End. Bulk data
// of every command is returned to the pool once the command ran.
func (c *Context) Execute(buf *wire.Buffer) error {
	c.frame++
	c.stats = Stats{}
	buf.Reset()

	for {
		cmd, err := wire.Decode(buf)
		if err != nil {
			return &FatalError{Kind: CorruptFrame, Frame: c.frame, Tag: wire.TagEnd, Err: err}
		}
		if cmd.Tag() == wire.TagEnd {
			break
		}
		c.stats.Commands++

		err = c.dispatch(cmd)
		if r, ok := cmd.(wire.Releaser); ok {
			release(r)
		}
		if err == nil {
			continue
		}

		if v, ok := err.(*violation); ok {
			if c.strict {
				return &FatalError{Kind: ContractViolation, Frame: c.frame, Tag: cmd.Tag(), Err: v}
			}
			c.log.WithFields(log.Fields{"frame": c.frame, "tag": cmd.Tag()}).Errorf("skipping command: %s", v)
			c.stats.Skipped++
			continue
		}
		return err
	}

	c.log.WithFields(log.Fields{
		"frame":    c.frame,
		"commands": c.stats.Commands,
		"draws":    c.stats.Draws,
		"elided":   c.stats.ElidedBinds,
	}).Debug("frame executed")
	return nil
}

func (c *Context) dispatch(cmd wire.Command) error {
	switch cmd := cmd.(type) {
	case *wire.CreateTexture2D:
		return c.createTexture(cmd.Handle)
	case *wire.UploadTexture2D:
		return c.uploadTexture(cmd)
	case *wire.BindTexture2D:
		return c.bindTexture(cmd.Unit, cmd.Texture)
	case *wire.CreateBuffer:
		return c.createBuffer(cmd.Handle)
	case *wire.UpdateBuffer:
		return c.updateBuffer(cmd)
	case *wire.CreateShaderProgram:
		return c.createProgram(cmd.Handle, cmd.Info)
	case *wire.CreateRenderTarget:
		return c.createRenderTarget(cmd.Handle, cmd.Options)
	case *wire.BindRenderTarget:
		return c.bindRenderTarget(cmd.Target)
	case *wire.BindRenderTargetTexture:
		return c.bindRenderTargetTexture(cmd.Unit, cmd.Target, cmd.Attachment)
	case *wire.ReloadShaders:
		c.reloadShaders()
		return nil
	case *wire.UseShaderProgram:
		return c.useProgram(cmd.Program)
	case *wire.Draw:
		return c.draw(cmd.Vertices, cmd.Indices, cmd.Elements)
	case *wire.BindUniformBuffer:
		return c.bindUniformBuffer(cmd.Slot, cmd.Buffer)
	case *wire.ClearScreen:
		c.clear(cmd.State)
		return nil
	}
	return &FatalError{Kind: CorruptFrame, Frame: c.frame, Tag: cmd.Tag(), Err: errors.New("no handler for command")}
}

func (c *Context) fail(kind FatalKind, tag wire.Tag, err error) error {
	return &FatalError{Kind: kind, Frame: c.frame, Tag: tag, Err: err}
}

func (c *Context) bufferSlot(h handle.Buffer) (*BufferSlot, error) {
	if int(h) >= len(c.buffers) {
		return nil, violationf("%s out of range, table holds %d", h, len(c.buffers))
	}
	if c.buffers[h].ID == 0 {
		return nil, violationf("%s used before it was created", h)
	}
	return &c.buffers[h], nil
}

func (c *Context) textureSlot(h handle.Texture2D) (*TextureSlot, error) {
	if int(h) >= len(c.textures) {
		return nil, violationf("%s out of range, table holds %d", h, len(c.textures))
	}
	if c.textures[h].ID == 0 {
		return nil, violationf("%s used before it was created", h)
	}
	return &c.textures[h], nil
}

func (c *Context) programSlot(h handle.ShaderProgram) (*ProgramSlot, error) {
	if int(h) >= len(c.programs) {
		return nil, violationf("%s out of range, table holds %d", h, len(c.programs))
	}
	if c.programs[h].ID == 0 {
		return nil, violationf("%s used before it was created", h)
	}
	return &c.programs[h], nil
}

func (c *Context) targetSlot(h handle.RenderTarget) (*RenderTargetSlot, error) {
	if int(h) >= len(c.targets) {
		return nil, violationf("%s out of range, table holds %d", h, len(c.targets))
	}
	if c.targets[h].FBO == 0 {
		return nil, violationf("%s used before it was created", h)
	}
	return &c.targets[h], nil
}

func (c *Context) createTexture(h handle.Texture2D) error {
	if !h.IsValid() || int(h) >= len(c.textures) {
		return violationf("cannot create %s, table holds %d", h, len(c.textures))
	}
	if c.textures[h].ID != 0 {
		return nil
	}
	id, err := c.dev.CreateTexture()
	if err != nil {
		c.log.WithField("handle", h).Errorf("creating texture: %s", err)
		return nil
	}
	c.textures[h].ID = id
	return nil
}

func (c *Context) uploadTexture(cmd *wire.UploadTexture2D) error {
	slot, err := c.textureSlot(cmd.Texture)
	if err != nil {
		return err
	}
	width, height := int(cmd.Width), int(cmd.Height)
	if err := c.dev.TextureImage(slot.ID, width, height, cmd.Format, cmd.Pixels); err != nil {
		c.log.WithField("handle", cmd.Texture).Errorf("uploading texture: %s", err)
		return nil
	}
	slot.Width, slot.Height, slot.Format = width, height, cmd.Format
	return nil
}

func (c *Context) bindTexture(unit uint8, h handle.Texture2D) error {
	if int(unit) >= TextureUnits {
		return violationf("texture unit %d out of range", unit)
	}
	var id device.ID
	if h.IsValid() {
		slot, err := c.textureSlot(h)
		if err != nil {
			return err
		}
		id = slot.ID
	}
	c.bindUnit(int(unit), id)
	return nil
}

func (c *Context) bindUnit(unit int, id device.ID) {
	if c.units[unit] == id {
		c.stats.ElidedBinds++
		return
	}
	c.dev.BindTexture(unit, id)
	c.units[unit] = id
}

func (c *Context) createBuffer(h handle.Buffer) error {
	if !h.IsValid() || int(h) >= len(c.buffers) {
		return violationf("cannot create %s, table holds %d", h, len(c.buffers))
	}
	if c.buffers[h].ID != 0 {
		return nil
	}
	id, err := c.dev.CreateBuffer()
	if err != nil {
		c.log.WithField("handle", h).Errorf("creating buffer: %s", err)
		return nil
	}
	c.buffers[h].ID = id
	return nil
}

// updateBuffer sizes the buffer to the recorded size. Data past the size
// is ignored.
func (c *Context) updateBuffer(cmd *wire.UpdateBuffer) error {
	slot, err := c.bufferSlot(cmd.Buffer)
	if err != nil {
		return err
	}
	size := int(cmd.Size)
	data := cmd.Data
	if len(data) > size {
		data = data[:size]
	}
	if err := c.dev.BufferData(slot.ID, size, data, cmd.Usage); err != nil {
		c.log.WithField("handle", cmd.Buffer).Errorf("updating buffer: %s", err)
		return nil
	}
	slot.Size, slot.Usage = size, cmd.Usage
	return nil
}

func (c *Context) createProgram(h handle.ShaderProgram, info core.ShaderInfo) error {
	if !h.IsValid() || int(h) >= len(c.programs) {
		return violationf("cannot create %s, table holds %d", h, len(c.programs))
	}
	if c.programs[h].ID != 0 {
		return nil
	}
	id, err := c.dev.CreateProgram(info)
	if err != nil {
		return c.fail(ShaderCompile, wire.TagCreateShaderProgram, errors.Wrapf(err, "creating %s", h))
	}
	c.programs[h] = ProgramSlot{ID: id, Info: info, Loaded: true}
	c.created = append(c.created, h)
	c.log.WithField("handle", h).Debugf("created program from %s and %s", info.Vertex, info.Fragment)
	return nil
}

func (c *Context) reloadShaders() {
	for _, h := range c.created {
		slot := &c.programs[h]
		if err := c.dev.ReloadProgram(slot.ID); err != nil {
			c.log.WithField("handle", h).Warnf("reloading program: %s", err)
			slot.Loaded = false
			continue
		}
		slot.Loaded = true
	}
	c.log.Infof("reloaded %d shader programs", len(c.created))
}

func (c *Context) useProgram(h handle.ShaderProgram) error {
	if !h.IsValid() {
		c.dev.UseProgram(0)
		return nil
	}
	slot, err := c.programSlot(h)
	if err != nil {
		return err
	}
	if !slot.Loaded {
		c.dev.UseProgram(0)
		return nil
	}
	c.dev.UseProgram(slot.ID)
	return nil
}

func (c *Context) createRenderTarget(h handle.RenderTarget, opts core.RenderTargetOptions) error {
	if !h.IsValid() || int(h) >= len(c.targets) {
		return violationf("cannot create %s, table holds %d", h, len(c.targets))
	}
	if c.targets[h].FBO != 0 {
		return nil
	}
	fb, err := c.dev.CreateFramebuffer(opts)
	switch {
	case err == nil:
	case errors.Cause(err) == device.ErrIncompleteFramebuffer:
		c.log.WithField("handle", h).Warnf("render target: %s", err)
	default:
		c.log.WithField("handle", h).Errorf("creating render target: %s", err)
		return nil
	}
	c.targets[h] = RenderTargetSlot{Framebuffer: fb, Options: opts, Complete: err == nil}
	return nil
}

func (c *Context) bindRenderTarget(h handle.RenderTarget) error {
	if !h.IsValid() {
		c.dev.BindFramebuffer(0)
		return nil
	}
	slot, err := c.targetSlot(h)
	if err != nil {
		return err
	}
	c.dev.BindFramebuffer(slot.FBO)
	return nil
}

func (c *Context) bindRenderTargetTexture(unit uint8, h handle.RenderTarget, attachment core.RenderTargetTexture) error {
	if int(unit) >= TextureUnits {
		return violationf("texture unit %d out of range", unit)
	}
	var id device.ID
	if h.IsValid() {
		slot, err := c.targetSlot(h)
		if err != nil {
			return err
		}
		id = slot.Attachment(attachment)
		if id == 0 {
			c.log.WithFields(log.Fields{"handle": h, "unit": unit}).Warnf("%s has no %s attachment", h, attachment)
		}
	}
	c.bindUnit(int(unit), id)
	return nil
}

func (c *Context) draw(vertices, indices handle.Buffer, elements uint32) error {
	if !vertices.IsValid() {
		return violationf("draw without a vertex buffer")
	}
	vb, err := c.bufferSlot(vertices)
	if err != nil {
		return err
	}
	var ib device.ID
	if indices.IsValid() {
		slot, err := c.bufferSlot(indices)
		if err != nil {
			return err
		}
		ib = slot.ID
	}
	c.stats.Draws++
	if err := c.dev.Draw(vb.ID, ib, int(elements)); err != nil {
		c.log.WithFields(log.Fields{"frame": c.frame, "handle": vertices}).Errorf("draw: %s", err)
	}
	return nil
}

func (c *Context) bindUniformBuffer(slot uint8, h handle.Buffer) error {
	if int(slot) >= UniformBufferSlots {
		return violationf("uniform buffer slot %d out of range", slot)
	}
	var id device.ID
	if h.IsValid() {
		b, err := c.bufferSlot(h)
		if err != nil {
			return err
		}
		id = b.ID
	}
	if c.uniforms[slot] == id {
		c.stats.ElidedBinds++
		return nil
	}
	c.dev.BindUniformBuffer(int(slot), id)
	c.uniforms[slot] = id
	return nil
}

func (c *Context) clear(state core.ClearState) {
	if state.Depth != c.clearDepth {
		c.clearDepth = state.Depth
		c.dev.SetClearDepth(state.Depth)
	}
	if state.Stencil != c.clearStencil {
		c.clearStencil = state.Stencil
		c.dev.SetClearStencil(state.Stencil)
	}
	if state.Color != c.clearColor {
		c.clearColor = state.Color
		c.dev.SetClearColor(state.Color)
	}
	if state.Buffers == 0 {
		c.log.WithField("frame", c.frame).Warn("clear without buffers to clear")
		return
	}
	c.dev.Clear(state.Buffers)
}

// Present shows the finished frame if the device can present
func (c *Context) Present() error {
	if p, ok := c.dev.(interface{ Present() error }); ok {
		return p.Present()
	}
	return nil
}

// Destroy releases the device
func (c *Context) Destroy() {
	c.dev.Destroy()
}

// Frame is the number of frames executed so far
func (c *Context) Frame() uint64 {
	return c.frame
}

// Stats returns the counters of the last frame
func (c *Context) Stats() Stats {
	return c.stats
}

// Buffer returns the slot of h
func (c *Context) Buffer(h handle.Buffer) (BufferSlot, bool) {
	if int(h) >= len(c.buffers) || c.buffers[h].ID == 0 {
		return BufferSlot{}, false
	}
	return c.buffers[h], true
}

// Texture returns the slot of h
func (c *Context) Texture(h handle.Texture2D) (TextureSlot, bool) {
	if int(h) >= len(c.textures) || c.textures[h].ID == 0 {
		return TextureSlot{}, false
	}
	return c.textures[h], true
}

// Program returns the slot of h
func (c *Context) Program(h handle.ShaderProgram) (ProgramSlot, bool) {
	if int(h) >= len(c.programs) || c.programs[h].ID == 0 {
		return ProgramSlot{}, false
	}
	return c.programs[h], true
}

// RenderTarget returns the slot of h
func (c *Context) RenderTarget(h handle.RenderTarget) (RenderTargetSlot, bool) {
	if int(h) >= len(c.targets) || c.targets[h].FBO == 0 {
		return RenderTargetSlot{}, false
	}
	return c.targets[h], true
}

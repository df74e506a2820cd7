// Package trace records every call made to a device. Wrapping nil turns
// it into a null device that hands out IDs and keeps buffer contents,
// which is enough to run frames without a graphics context.
package trace

import (
	"fmt"
	"strings"
	"sync"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/device"
)

// Call is one recorded device call. Numeric arguments are stored as
// float64, which holds every ID and size exactly.
type Call struct {
	Op     string
	Args   []float64
	Result device.ID
	Err    string
}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprintf("%g", a)
	}
	s := c.Op + "(" + strings.Join(args, ", ") + ")"
	if c.Result != 0 {
		s += fmt.Sprintf(" = %d", c.Result)
	}
	if c.Err != "" {
		s += " ! " + c.Err
	}
	return s
}

// Device records calls and forwards them to an inner device, if any
type Device struct {
	inner device.Device
	log   log.FieldLogger

	mutex    sync.Mutex
	calls    []Call
	failures map[string]error
	buffers  map[device.ID][]byte
	programs map[device.ID]core.ShaderInfo
	next     device.ID
}

// New wraps inner. A nil inner makes a null device.
func New(inner device.Device, logger log.FieldLogger) *Device {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Device{
		inner:    inner,
		log:      logger.WithField("device", "trace"),
		failures: make(map[string]error),
		buffers:  make(map[device.ID][]byte),
		programs: make(map[device.ID]core.ShaderInfo),
	}
}

// FailNext makes the next call of op return err instead of reaching
// the inner device
func (d *Device) FailNext(op string, err error) {
	d.mutex.Lock()
	d.failures[op] = err
	d.mutex.Unlock()
}

// Calls returns a copy of the calls recorded so far
func (d *Device) Calls() []Call {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]Call(nil), d.calls...)
}

// Drain returns the calls recorded so far and forgets them
func (d *Device) Drain() []Call {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	calls := d.calls
	d.calls = nil
	return calls
}

// BufferContents returns a copy of what was last stored in buffer id
func (d *Device) BufferContents(id device.ID) ([]byte, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	data, ok := d.buffers[id]
	return append([]byte(nil), data...), ok
}

func (d *Device) failure(op string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	err, ok := d.failures[op]
	if ok {
		delete(d.failures, op)
	}
	return err
}

func (d *Device) record(op string, result device.ID, err error, args ...float64) {
	c := Call{Op: op, Args: args, Result: result}
	if err != nil {
		c.Err = err.Error()
	}
	d.mutex.Lock()
	d.calls = append(d.calls, c)
	d.mutex.Unlock()
	d.log.WithField("op", op).Debug(c.String())
}

func (d *Device) newID() device.ID {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.next++
	return d.next
}

// CreateBuffer implements interface
func (d *Device) CreateBuffer() (device.ID, error) {
	id, err := d.create("CreateBuffer", func() (device.ID, error) { return d.inner.CreateBuffer() })
	if err == nil {
		d.mutex.Lock()
		d.buffers[id] = nil
		d.mutex.Unlock()
	}
	return id, err
}

// CreateTexture implements interface
func (d *Device) CreateTexture() (device.ID, error) {
	return d.create("CreateTexture", func() (device.ID, error) { return d.inner.CreateTexture() })
}

func (d *Device) create(op string, inner func() (device.ID, error)) (device.ID, error) {
	var (
		id  device.ID
		err = d.failure(op)
	)
	if err == nil {
		if d.inner != nil {
			id, err = inner()
		} else {
			id = d.newID()
		}
	}
	d.record(op, id, err)
	return id, err
}

// BufferData implements interface
func (d *Device) BufferData(id device.ID, size int, data []byte, usage core.BufferUsage) error {
	err := d.failure("BufferData")
	if err == nil && d.inner != nil {
		err = d.inner.BufferData(id, size, data, usage)
	}
	if err == nil {
		stored := make([]byte, size)
		copy(stored, data)
		d.mutex.Lock()
		d.buffers[id] = stored
		d.mutex.Unlock()
	}
	d.record("BufferData", 0, err, float64(id), float64(size), float64(usage))
	return err
}

// TextureImage implements interface
func (d *Device) TextureImage(id device.ID, width, height int, format core.TextureFormat, pixels []byte) error {
	err := d.failure("TextureImage")
	if err == nil && d.inner != nil {
		err = d.inner.TextureImage(id, width, height, format, pixels)
	}
	d.record("TextureImage", 0, err, float64(id), float64(width), float64(height), float64(format))
	return err
}

// BindTexture implements interface
func (d *Device) BindTexture(unit int, id device.ID) {
	if d.inner != nil {
		d.inner.BindTexture(unit, id)
	}
	d.record("BindTexture", 0, nil, float64(unit), float64(id))
}

// CreateProgram implements interface. The null device rejects
// programs without a vertex or a fragment stage.
func (d *Device) CreateProgram(info core.ShaderInfo) (device.ID, error) {
	var id device.ID
	err := d.failure("CreateProgram")
	if err == nil {
		if d.inner != nil {
			id, err = d.inner.CreateProgram(info)
		} else if info.Vertex == "" || info.Fragment == "" {
			err = &device.CompileError{Program: info, Log: "program needs a vertex and a fragment stage"}
		} else {
			id = d.newID()
		}
	}
	if err == nil {
		d.mutex.Lock()
		d.programs[id] = info
		d.mutex.Unlock()
	}
	d.record("CreateProgram", id, err)
	return id, err
}

// Program returns the sources program id was created from
func (d *Device) Program(id device.ID) (core.ShaderInfo, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	info, ok := d.programs[id]
	return info, ok
}

// ReloadProgram implements interface
func (d *Device) ReloadProgram(id device.ID) error {
	err := d.failure("ReloadProgram")
	if err == nil && d.inner != nil {
		err = d.inner.ReloadProgram(id)
	}
	d.record("ReloadProgram", 0, err, float64(id))
	return err
}

// UseProgram implements interface
func (d *Device) UseProgram(id device.ID) {
	if d.inner != nil {
		d.inner.UseProgram(id)
	}
	d.record("UseProgram", 0, nil, float64(id))
}

// BindUniformBuffer implements interface
func (d *Device) BindUniformBuffer(slot int, id device.ID) {
	if d.inner != nil {
		d.inner.BindUniformBuffer(slot, id)
	}
	d.record("BindUniformBuffer", 0, nil, float64(slot), float64(id))
}

// CreateFramebuffer implements interface
func (d *Device) CreateFramebuffer(opts core.RenderTargetOptions) (device.Framebuffer, error) {
	var (
		fb  device.Framebuffer
		err = d.failure("CreateFramebuffer")
	)
	switch {
	case d.inner != nil && err == nil:
		fb, err = d.inner.CreateFramebuffer(opts)
	case d.inner == nil && (err == nil || errors.Cause(err) == device.ErrIncompleteFramebuffer):
		// incomplete framebuffers still exist, other failures allocate nothing
		fb.FBO = d.newID()
		for _, t := range []core.RenderTargetTexture{core.ColorAttachment, core.DepthAttachment, core.AuxAttachment} {
			if opts.Format(t) == core.NoTexture {
				continue
			}
			id := d.newID()
			switch t {
			case core.ColorAttachment:
				fb.Color = id
			case core.DepthAttachment:
				fb.Depth = id
			case core.AuxAttachment:
				fb.Aux = id
			}
		}
	}
	d.record("CreateFramebuffer", fb.FBO, err,
		float64(opts.Color), float64(opts.Depth), float64(opts.Aux), float64(opts.Width), float64(opts.Height))
	return fb, err
}

// BindFramebuffer implements interface
func (d *Device) BindFramebuffer(id device.ID) {
	if d.inner != nil {
		d.inner.BindFramebuffer(id)
	}
	d.record("BindFramebuffer", 0, nil, float64(id))
}

// SetClearColor implements interface
func (d *Device) SetClearColor(c glm.Vec4) {
	if d.inner != nil {
		d.inner.SetClearColor(c)
	}
	d.record("SetClearColor", 0, nil, float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3]))
}

// SetClearDepth implements interface
func (d *Device) SetClearDepth(v float32) {
	if d.inner != nil {
		d.inner.SetClearDepth(v)
	}
	d.record("SetClearDepth", 0, nil, float64(v))
}

// SetClearStencil implements interface
func (d *Device) SetClearStencil(s int32) {
	if d.inner != nil {
		d.inner.SetClearStencil(s)
	}
	d.record("SetClearStencil", 0, nil, float64(s))
}

// Clear implements interface
func (d *Device) Clear(mask core.ClearMask) {
	if d.inner != nil {
		d.inner.Clear(mask)
	}
	d.record("Clear", 0, nil, float64(mask))
}

// Draw implements interface
func (d *Device) Draw(vertices, indices device.ID, count int) error {
	err := d.failure("Draw")
	if err == nil && d.inner != nil {
		err = d.inner.Draw(vertices, indices, count)
	}
	d.record("Draw", 0, err, float64(vertices), float64(indices), float64(count))
	return err
}

// Destroy implements interface
func (d *Device) Destroy() {
	if d.inner != nil {
		d.inner.Destroy()
	}
	d.record("Destroy", 0, nil)
}

// Present forwards to the inner device if it can present
func (d *Device) Present() error {
	err := d.failure("Present")
	if p, ok := d.inner.(interface{ Present() error }); ok && err == nil {
		err = p.Present()
	}
	d.record("Present", 0, err)
	return err
}

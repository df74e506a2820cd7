// Package soft is a CPU device. It keeps every object in client memory
// and fills triangles with a vector rasterizer, so frames can be executed
// and looked at without a GPU.
//
// Programs are read through a shader.Source. The device does not run
// shader code, it reads directives from comment lines instead:
//
//	//! transform 0        (vertex: MVP matrix from uniform slot 0)
//	//! color 1 0 0 1      (fragment: flat color)
//	//! texture 0          (fragment: sample texture unit 0)
//	//! normal             (fragment: color by normal)
//
// There is no depth test, triangles are painted in submission order.
package soft

import (
	"image"
	"image/color"
	"sync"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/device"
	"github.com/devblok/framewire/shader"
)

// Binding points
const (
	TextureUnits       = 32
	UniformBufferSlots = 32
)

type buffer struct {
	data  []byte
	usage core.BufferUsage
}

type texture struct {
	format core.TextureFormat
	img    draw.Image
}

type framebuffer struct {
	color, depth, aux device.ID
}

// Device is a software rendering device
type Device struct {
	log     log.FieldLogger
	shaders shader.Source

	buffers      map[device.ID]*buffer
	textures     map[device.ID]*texture
	programs     map[device.ID]*program
	framebuffers map[device.ID]*framebuffer
	next         device.ID

	units   [TextureUnits]device.ID
	ubos    [UniformBufferSlots]device.ID
	current device.ID
	bound   device.ID

	clearColor   glm.Vec4
	clearDepth   float32
	clearStencil int32

	back    *image.RGBA
	depth   []float32
	stencil []int32
	raster  vector.Rasterizer

	frontMutex sync.Mutex
	front      *image.RGBA
	presented  uint64
}

// New creates a device drawing into a width by height default framebuffer
func New(width, height int, shaders shader.Source, logger log.FieldLogger) *Device {
	if logger == nil {
		logger = log.StandardLogger()
	}
	rect := image.Rect(0, 0, width, height)
	return &Device{
		log:          logger.WithField("device", "soft"),
		shaders:      shaders,
		buffers:      make(map[device.ID]*buffer),
		textures:     make(map[device.ID]*texture),
		programs:     make(map[device.ID]*program),
		framebuffers: make(map[device.ID]*framebuffer),
		clearColor:   device.DefaultClearColor,
		clearDepth:   device.DefaultClearDepth,
		clearStencil: device.DefaultClearStencil,
		back:         image.NewRGBA(rect),
		depth:        make([]float32, width*height),
		stencil:      make([]int32, width*height),
		front:        image.NewRGBA(rect),
	}
}

func (d *Device) newID() device.ID {
	d.next++
	return d.next
}

// CreateBuffer implements interface
func (d *Device) CreateBuffer() (device.ID, error) {
	id := d.newID()
	d.buffers[id] = &buffer{}
	return id, nil
}

// BufferData implements interface
func (d *Device) BufferData(id device.ID, size int, data []byte, usage core.BufferUsage) error {
	b, ok := d.buffers[id]
	if !ok {
		return errors.Wrapf(device.ErrUnknownResource, "buffer %d", id)
	}
	if cap(b.data) >= size {
		b.data = b.data[:size]
		for i := copy(b.data, data); i < size; i++ {
			b.data[i] = 0
		}
	} else {
		b.data = make([]byte, size)
		copy(b.data, data)
	}
	b.usage = usage
	return nil
}

// CreateTexture implements interface
func (d *Device) CreateTexture() (device.ID, error) {
	id := d.newID()
	d.textures[id] = &texture{format: core.NoTexture}
	return id, nil
}

func newImage(format core.TextureFormat, width, height int) draw.Image {
	rect := image.Rect(0, 0, width, height)
	switch format {
	case core.R8:
		return image.NewGray(rect)
	case core.Depth:
		return image.NewGray16(rect)
	default:
		return image.NewRGBA(rect)
	}
}

// TextureImage implements interface
func (d *Device) TextureImage(id device.ID, width, height int, format core.TextureFormat, pixels []byte) error {
	t, ok := d.textures[id]
	if !ok {
		return errors.Wrapf(device.ErrUnknownResource, "texture %d", id)
	}
	if format == core.NoTexture {
		return errors.New("texture image needs a format")
	}
	need := width * height * format.BytesPerPixel()
	if pixels != nil && len(pixels) < need {
		return errors.Errorf("texture %d: %d bytes of pixels for a %dx%d %s image", id, len(pixels), width, height, format)
	}
	img := newImage(format, width, height)
	if pixels != nil {
		switch im := img.(type) {
		case *image.RGBA:
			copy(im.Pix, pixels)
		case *image.Gray:
			copy(im.Pix, pixels)
		case *image.Gray16:
			copy(im.Pix, pixels)
		}
	}
	t.format = format
	t.img = img
	return nil
}

// BindTexture implements interface
func (d *Device) BindTexture(unit int, id device.ID) {
	if unit >= 0 && unit < TextureUnits {
		d.units[unit] = id
	}
}

// CreateProgram implements interface
func (d *Device) CreateProgram(info core.ShaderInfo) (device.ID, error) {
	p, err := d.compile(info)
	if err != nil {
		return 0, err
	}
	id := d.newID()
	d.programs[id] = p
	return id, nil
}

// ReloadProgram implements interface
func (d *Device) ReloadProgram(id device.ID) error {
	old, ok := d.programs[id]
	if !ok {
		return errors.Wrapf(device.ErrUnknownResource, "program %d", id)
	}
	p, err := d.compile(old.info)
	if err != nil {
		return err
	}
	d.programs[id] = p
	return nil
}

// UseProgram implements interface
func (d *Device) UseProgram(id device.ID) {
	d.current = id
}

// BindUniformBuffer implements interface
func (d *Device) BindUniformBuffer(slot int, id device.ID) {
	if slot >= 0 && slot < UniformBufferSlots {
		d.ubos[slot] = id
	}
}

// CreateFramebuffer implements interface. Attachments are textures and
// can be bound to units like any other texture.
func (d *Device) CreateFramebuffer(opts core.RenderTargetOptions) (device.Framebuffer, error) {
	fb := device.Framebuffer{FBO: d.newID()}
	if opts.Width <= 0 || opts.Height <= 0 {
		d.framebuffers[fb.FBO] = &framebuffer{}
		return fb, errors.Wrapf(device.ErrIncompleteFramebuffer, "size %dx%d", opts.Width, opts.Height)
	}
	attach := func(format core.TextureFormat) device.ID {
		if format == core.NoTexture {
			return 0
		}
		id, _ := d.CreateTexture()
		d.textures[id].format = format
		d.textures[id].img = newImage(format, int(opts.Width), int(opts.Height))
		return id
	}
	fb.Color = attach(opts.Color)
	fb.Depth = attach(opts.Depth)
	fb.Aux = attach(opts.Aux)
	d.framebuffers[fb.FBO] = &framebuffer{color: fb.Color, depth: fb.Depth, aux: fb.Aux}
	if fb.Color == 0 {
		return fb, errors.Wrap(device.ErrIncompleteFramebuffer, "no color attachment")
	}
	return fb, nil
}

// BindFramebuffer implements interface
func (d *Device) BindFramebuffer(id device.ID) {
	d.bound = id
}

// SetClearColor implements interface
func (d *Device) SetClearColor(c glm.Vec4) { d.clearColor = c }

// SetClearDepth implements interface
func (d *Device) SetClearDepth(v float32) { d.clearDepth = v }

// SetClearStencil implements interface
func (d *Device) SetClearStencil(s int32) { d.clearStencil = s }

func toColor(c glm.Vec4) color.RGBA {
	channel := func(f float32) uint8 {
		if f <= 0 {
			return 0
		}
		if f >= 1 {
			return 255
		}
		return uint8(f*255 + 0.5)
	}
	return color.RGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: channel(c[3])}
}

// target returns the color image drawing goes to
func (d *Device) target() draw.Image {
	if d.bound == 0 {
		return d.back
	}
	fb, ok := d.framebuffers[d.bound]
	if !ok || fb.color == 0 {
		return nil
	}
	return d.textures[fb.color].img
}

// Clear implements interface
func (d *Device) Clear(mask core.ClearMask) {
	if mask&core.ClearColor != 0 {
		if dst := d.target(); dst != nil {
			draw.Draw(dst, dst.Bounds(), image.NewUniform(toColor(d.clearColor)), image.Point{}, draw.Src)
		}
	}
	if mask&core.ClearDepth != 0 {
		if d.bound == 0 {
			for i := range d.depth {
				d.depth[i] = d.clearDepth
			}
		} else if fb, ok := d.framebuffers[d.bound]; ok && fb.depth != 0 {
			dst := d.textures[fb.depth].img
			v := uint16(d.clearDepth * 0xffff)
			draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Gray16{Y: v}), image.Point{}, draw.Src)
		}
	}
	if mask&core.ClearStencil != 0 && d.bound == 0 {
		for i := range d.stencil {
			d.stencil[i] = d.clearStencil
		}
	}
}

// Destroy implements interface
func (d *Device) Destroy() {
	d.buffers = make(map[device.ID]*buffer)
	d.textures = make(map[device.ID]*texture)
	d.programs = make(map[device.ID]*program)
	d.framebuffers = make(map[device.ID]*framebuffer)
}

// Present copies the default framebuffer to the front image
func (d *Device) Present() error {
	d.frontMutex.Lock()
	copy(d.front.Pix, d.back.Pix)
	d.presented++
	d.frontMutex.Unlock()
	return nil
}

// Frame calls fn with the last presented image. The image must not be
// retained after fn returns. Safe to call from any goroutine.
func (d *Device) Frame(fn func(img *image.RGBA, presented uint64)) {
	d.frontMutex.Lock()
	defer d.frontMutex.Unlock()
	fn(d.front, d.presented)
}

// Snapshot scales the last presented image into dst
func (d *Device) Snapshot(dst draw.Image) {
	d.Frame(func(img *image.RGBA, _ uint64) {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	})
}

// TextureImageOf returns the image of a texture, for inspection
func (d *Device) TextureImageOf(id device.ID) (image.Image, bool) {
	t, ok := d.textures[id]
	if !ok || t.img == nil {
		return nil, false
	}
	return t.img, true
}

// Depth returns the depth a pixel of the default framebuffer was cleared to
func (d *Device) Depth(x, y int) float32 {
	return d.depth[y*d.back.Rect.Dx()+x]
}

package soft

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"strconv"
	"strings"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/device"
	"github.com/devblok/framewire/shader"
)

const directivePrefix = "//!"

type fragmentMode uint8

const (
	flatColor fragmentMode = iota
	textured
	byNormal
)

type program struct {
	info core.ShaderInfo

	// transformSlot is the uniform slot holding the MVP matrix, -1 for none
	transformSlot int

	mode  fragmentMode
	color glm.Vec4
	unit  int
}

func (d *Device) compile(info core.ShaderInfo) (*program, error) {
	if info.Vertex == "" {
		return nil, &device.CompileError{Program: info, Stage: "vertex", Log: "program has no vertex stage"}
	}
	if info.Fragment == "" {
		return nil, &device.CompileError{Program: info, Stage: "fragment", Log: "program has no fragment stage"}
	}
	if d.shaders == nil {
		return nil, &device.CompileError{Program: info, Log: "device has no shader source"}
	}
	src, err := shader.Load(d.shaders, info, d.log)
	if err != nil {
		return nil, &device.CompileError{Program: info, Log: err.Error()}
	}

	p := &program{
		info:          info,
		transformSlot: -1,
		color:         glm.Vec4{1, 1, 1, 1},
	}
	if err := directives(src.Vertex, p.vertexDirective); err != nil {
		return nil, &device.CompileError{Program: info, Stage: info.Vertex, Log: err.Error()}
	}
	if err := directives(src.Fragment, p.fragmentDirective); err != nil {
		return nil, &device.CompileError{Program: info, Stage: info.Fragment, Log: err.Error()}
	}
	return p, nil
}

func directives(src []byte, apply func(name string, args []string) error) error {
	scanner := bufio.NewScanner(bytes.NewReader(src))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(text, directivePrefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(text, directivePrefix))
		if len(fields) == 0 {
			continue
		}
		if err := apply(fields[0], fields[1:]); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
	}
	return scanner.Err()
}

func (p *program) vertexDirective(name string, args []string) error {
	switch name {
	case "transform":
		slot, err := intArg(args, UniformBufferSlots)
		if err != nil {
			return err
		}
		p.transformSlot = slot
	default:
		return errors.Errorf("unknown vertex directive %q", name)
	}
	return nil
}

func (p *program) fragmentDirective(name string, args []string) error {
	switch name {
	case "color":
		if len(args) != 4 {
			return errors.New("color takes 4 components")
		}
		for i, a := range args {
			f, err := strconv.ParseFloat(a, 32)
			if err != nil {
				return err
			}
			p.color[i] = float32(f)
		}
		p.mode = flatColor
	case "texture":
		unit, err := intArg(args, TextureUnits)
		if err != nil {
			return err
		}
		p.unit = unit
		p.mode = textured
	case "normal":
		p.mode = byNormal
	default:
		return errors.Errorf("unknown fragment directive %q", name)
	}
	return nil
}

func intArg(args []string, limit int) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if n < 0 || n >= limit {
		return 0, errors.Errorf("%d out of range", n)
	}
	return n, nil
}

// shade returns the color of a triangle from its centroid attributes
func (p *program) shade(d *Device, uv glm.Vec2, normal glm.Vec3) color.Color {
	switch p.mode {
	case textured:
		t, ok := d.textures[d.units[p.unit]]
		if !ok || t.img == nil {
			return toColor(p.color)
		}
		b := t.img.Bounds()
		x := b.Min.X + int(clamp01(uv[0])*float32(b.Dx()-1))
		y := b.Min.Y + int(clamp01(uv[1])*float32(b.Dy()-1))
		return t.img.At(x, y)
	case byNormal:
		if normal.Len() > 0 {
			normal = normal.Normalize()
		}
		return toColor(glm.Vec4{normal[0]*0.5 + 0.5, normal[1]*0.5 + 0.5, normal[2]*0.5 + 0.5, 1})
	}
	return toColor(p.color)
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Draw implements interface
func (d *Device) Draw(vertices, indices device.ID, count int) error {
	p, ok := d.programs[d.current]
	if !ok {
		return errors.New("draw without a shader program")
	}
	vb, ok := d.buffers[vertices]
	if !ok {
		return errors.Wrapf(device.ErrUnknownResource, "vertex buffer %d", vertices)
	}
	floats := core.BytesFloat32(vb.data)
	vertexCount := len(floats) / core.VertexFloats

	index := func(i int) int { return i }
	if indices != 0 {
		ib, ok := d.buffers[indices]
		if !ok {
			return errors.Wrapf(device.ErrUnknownResource, "index buffer %d", indices)
		}
		if len(ib.data) < count*4 {
			return errors.Errorf("index buffer %d holds %d indices, drawing %d", indices, len(ib.data)/4, count)
		}
		index = func(i int) int { return int(binary.LittleEndian.Uint32(ib.data[4*i:])) }
	}

	mvp := glm.Ident4()
	if p.transformSlot >= 0 {
		if ubo, ok := d.buffers[d.ubos[p.transformSlot]]; ok {
			if m, ok := core.BytesMat4(ubo.data); ok {
				mvp = m
			}
		}
	}

	dst := d.target()
	if dst == nil {
		return errors.Errorf("framebuffer %d has no color attachment", d.bound)
	}
	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()

	for t := 0; t+2 < count; t += 3 {
		var (
			points  [3][2]float32
			uv      glm.Vec2
			normal  glm.Vec3
			visible = true
		)
		for k := 0; k < 3; k++ {
			i := index(t + k)
			if i < 0 || i >= vertexCount {
				return errors.Errorf("vertex %d out of range, buffer %d holds %d", i, vertices, vertexCount)
			}
			v := floats[i*core.VertexFloats : (i+1)*core.VertexFloats]
			clip := mvp.Mul4x1(glm.Vec4{v[core.VertexPositionOffset], v[core.VertexPositionOffset+1], v[core.VertexPositionOffset+2], 1})
			if clip[3] <= 0 {
				visible = false
				break
			}
			points[k][0] = (clip[0]/clip[3]*0.5 + 0.5) * float32(width)
			points[k][1] = (0.5 - clip[1]/clip[3]*0.5) * float32(height)
			uv = uv.Add(glm.Vec2{v[core.VertexUVOffset], v[core.VertexUVOffset+1]})
			normal = normal.Add(glm.Vec3{v[core.VertexNormalOffset], v[core.VertexNormalOffset+1], v[core.VertexNormalOffset+2]})
		}
		if !visible {
			continue
		}

		d.raster.Reset(width, height)
		d.raster.MoveTo(points[0][0], points[0][1])
		d.raster.LineTo(points[1][0], points[1][1])
		d.raster.LineTo(points[2][0], points[2][1])
		d.raster.ClosePath()
		d.raster.Draw(dst, dst.Bounds(), image.NewUniform(p.shade(d, uv.Mul(1.0/3), normal)), image.Point{})
	}
	return nil
}

package trace_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/device"
	"github.com/devblok/framewire/device/trace"
)

func ops(calls []trace.Call) []string {
	var s []string
	for _, c := range calls {
		s = append(s, c.String())
	}
	return s
}

func TestNullDevice(t *testing.T) {
	c := qt.New(t)
	d := trace.New(nil, nil)

	buf, err := d.CreateBuffer()
	c.Assert(err, qt.IsNil)
	c.Assert(d.BufferData(buf, 4, []byte{1, 2}, core.DynamicBuffer), qt.IsNil)
	d.BindUniformBuffer(3, buf)
	d.SetClearColor(glm.Vec4{1, 0.5, 0, 1})
	d.Clear(core.ClearAll)

	c.Assert(ops(d.Drain()), qt.DeepEquals, []string{
		"CreateBuffer() = 1",
		"BufferData(1, 4, 1)",
		"BindUniformBuffer(3, 1)",
		"SetClearColor(1, 0.5, 0, 1)",
		"Clear(7)",
	})
	c.Assert(d.Calls(), qt.HasLen, 0)

	data, ok := d.BufferContents(buf)
	c.Assert(ok, qt.IsTrue)
	c.Assert(data, qt.DeepEquals, []byte{1, 2, 0, 0})
}

func TestNullProgramNeedsBothStages(t *testing.T) {
	c := qt.New(t)
	d := trace.New(nil, nil)
	_, err := d.CreateProgram(core.ShaderInfo{Vertex: "a.vert"})
	c.Assert(err, qt.ErrorMatches, "shader program failed: .*")

	id, err := d.CreateProgram(core.VSFS("a.vert", "a.frag"))
	c.Assert(err, qt.IsNil)
	info, ok := d.Program(id)
	c.Assert(ok, qt.IsTrue)
	c.Assert(info.Fragment, qt.Equals, "a.frag")
}

func TestFailNext(t *testing.T) {
	c := qt.New(t)
	d := trace.New(nil, nil)
	d.FailNext("CreateFramebuffer", device.ErrIncompleteFramebuffer)

	fb, err := d.CreateFramebuffer(core.SRGB8Depth(4, 4))
	c.Assert(err, qt.Equals, device.ErrIncompleteFramebuffer)
	c.Assert(fb.FBO, qt.Not(qt.Equals), device.ID(0))

	_, err = d.CreateFramebuffer(core.SRGB8Depth(4, 4))
	c.Assert(err, qt.IsNil)

	calls := d.Drain()
	c.Assert(calls[0].Err, qt.Equals, device.ErrIncompleteFramebuffer.Error())
}

func TestFailedFramebufferAllocatesNothing(t *testing.T) {
	c := qt.New(t)
	d := trace.New(nil, nil)
	d.FailNext("CreateFramebuffer", errors.New("out of memory"))

	fb, err := d.CreateFramebuffer(core.SRGB8Depth(4, 4))
	c.Assert(err, qt.ErrorMatches, "out of memory")
	c.Assert(fb, qt.Equals, device.Framebuffer{})
}

type countingDevice struct {
	device.Device
	draws int
}

func (c *countingDevice) Draw(v, i device.ID, n int) error {
	c.draws++
	return nil
}

func TestForwardsToInner(t *testing.T) {
	c := qt.New(t)
	inner := &countingDevice{}
	d := trace.New(inner, nil)
	c.Assert(d.Draw(1, 0, 3), qt.IsNil)
	c.Assert(inner.draws, qt.Equals, 1)
	c.Assert(ops(d.Calls()), qt.DeepEquals, []string{"Draw(1, 0, 3)"})
}

func TestPresentWithoutInner(t *testing.T) {
	c := qt.New(t)
	d := trace.New(nil, nil)
	c.Assert(d.Present(), qt.IsNil)
	d.FailNext("Present", device.ErrUnknownResource)
	c.Assert(d.Present(), qt.Equals, device.ErrUnknownResource)
	c.Assert(ops(d.Drain()), qt.DeepEquals, []string{"Present()", "Present() ! " + device.ErrUnknownResource.Error()})
}

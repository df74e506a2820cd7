package core_test

import (
	"image"
	"image/color"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/handle"
)

func TestRenderTargetPresets(t *testing.T) {
	c := qt.New(t)
	opts := core.SRGB8Depth(640, 480)
	c.Assert(opts, qt.DeepEquals, core.RenderTargetOptions{
		Color: core.SRGBA8, Depth: core.Depth, Aux: core.NoTexture, Width: 640, Height: 480,
	})
	c.Assert(core.SRGB8DepthRGB8(1, 2).Format(core.AuxAttachment), qt.Equals, core.RGBA8)
}

func TestClearPresets(t *testing.T) {
	c := qt.New(t)
	cs := core.DefaultClearState()
	c.Assert(cs.Buffers, qt.Equals, core.ClearColor|core.ClearDepth)
	c.Assert(cs.Color, qt.Equals, glm.Vec4{1, 1, 1, 1})
	c.Assert(cs.Depth, qt.Equals, float32(1))
	c.Assert(core.AllBuffers().Buffers&core.ClearStencil, qt.Equals, core.ClearStencil)
}

func TestShaderStages(t *testing.T) {
	c := qt.New(t)
	si := core.VSFS("a.vert", "a.frag", "inc")
	si.Geometry = "a.geom"
	c.Assert(si.Stages(), qt.DeepEquals, []string{"a.vert", "a.geom", "a.frag"})
	c.Assert(si.IncludeDir, qt.Equals, "inc")
}

func TestGetPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(2, 2, 4, 3))
	img.Set(2, 2, color.NRGBA{R: 255, A: 255})
	img.Set(3, 2, color.NRGBA{B: 255, A: 255})

	pix := core.GetPixels(img)
	qt.Assert(t, pix, qt.DeepEquals, []uint8{255, 0, 0, 255, 0, 0, 255, 255})
}

func TestMat4Bytes(t *testing.T) {
	m := glm.Translate3D(1, 2, 3)
	got, ok := core.BytesMat4(core.Mat4Bytes(m))
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, got, qt.Equals, m)

	_, ok = core.BytesMat4(make([]byte, 10))
	qt.Assert(t, ok, qt.IsFalse)
}

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)
	for _, k := range []string{core.EnvWidth, core.EnvCommandBufferSize, core.EnvStrictHandles, core.EnvLogLevel} {
		c.Setenv(k, "")
	}
	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.CommandBufferSize, qt.Equals, core.DefaultCommandBufferSize)
	c.Assert(cfg.Renderer.Limits, qt.Equals, handle.DefaultLimits)
	c.Assert(cfg.Renderer.StrictHandles, qt.IsTrue)
}

func TestLoadConfigurationOverrides(t *testing.T) {
	c := qt.New(t)
	c.Setenv(core.EnvWidth, "1024")
	c.Setenv(core.EnvCommandBufferSize, "4096")
	c.Setenv(core.EnvStrictHandles, "false")
	c.Setenv(core.EnvLogLevel, "debug")

	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1024))
	c.Assert(cfg.Renderer.CommandBufferSize, qt.Equals, 4096)
	c.Assert(cfg.Renderer.StrictHandles, qt.IsFalse)
	c.Assert(cfg.LogLevel, qt.Equals, log.DebugLevel)
}

func TestLoadConfigurationDotenv(t *testing.T) {
	c := qt.New(t)
	c.Setenv(core.EnvHeight, "")
	os.Unsetenv(core.EnvHeight)
	c.Setenv(core.EnvFramesPerSecond, "")
	os.Unsetenv(core.EnvFramesPerSecond)

	f := c.TempDir() + "/test.env"
	err := os.WriteFile(f, []byte(core.EnvHeight+"=720\n"+core.EnvFramesPerSecond+"=30\n"), 0o644)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		os.Unsetenv(core.EnvHeight)
		os.Unsetenv(core.EnvFramesPerSecond)
	})

	cfg, err := core.LoadConfiguration(f)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, uint32(720))
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 30)
}

func TestLoadConfigurationBadValue(t *testing.T) {
	c := qt.New(t)
	c.Setenv(core.EnvCommandBufferSize, "lots")
	_, err := core.LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, `parsing KORU_COMMAND_BUFFER_SIZE: .*`)
}

func TestTimeTickers(t *testing.T) {
	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 1000, EventPollDelay: 1})
	defer tm.Stop()
	qt.Assert(t, tm.EventPollDelay(), qt.Equals, time.Millisecond)
	select {
	case <-tm.FpsTicker().C:
	case <-time.After(time.Second):
		t.Fatal("fps ticker never fired")
	}
}

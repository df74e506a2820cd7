// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"image"
	"image/color"
	"io/ioutil"
	"time"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/gfx"
	"github.com/devblok/framewire/handle"
	"github.com/devblok/framewire/model"
)

const (
	includeDir = "include"
	targetSize = 64
)

type mesh struct {
	vertices, indices handle.Buffer
	elements          uint32
}

func upload(sys *gfx.System, m *model.Mesh) mesh {
	vb, ib := m.Upload(sys)
	return mesh{vertices: vb, indices: ib, elements: m.Elements()}
}

// scene renders a checkerboard into an offscreen target and shows that
// target on a spinning quad, next to an optional model
type scene struct {
	sys    *gfx.System
	aspect float32

	flat, textured, shaded handle.ShaderProgram

	checker   handle.Texture2D
	target    handle.RenderTarget
	transform handle.Buffer

	quad   mesh
	object *mesh
	obj    model.Object
}

func checkerboard(size, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	light := color.RGBA{R: 230, G: 230, B: 220, A: 255}
	dark := color.RGBA{R: 40, G: 60, B: 90, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, light)
			} else {
				img.SetRGBA(x, y, dark)
			}
		}
	}
	return img
}

func newScene(sys *gfx.System, cfg core.Configuration, modelPath string) (*scene, error) {
	s := &scene{
		sys:      sys,
		aspect:   float32(cfg.Renderer.ScreenWidth) / float32(cfg.Renderer.ScreenHeight),
		flat:     sys.CreateShaderProgram(core.VSFS("flat.vert", "textured.frag", includeDir)),
		textured: sys.CreateShaderProgram(core.VSFS("scene.vert", "textured.frag", includeDir)),
		shaded:   sys.CreateShaderProgram(core.VSFS("scene.vert", "normal.frag", includeDir)),
		target:   sys.CreateRenderTarget(core.SRGB8Depth(targetSize, targetSize)),
		checker:  sys.CreateTexture2D(),
	}

	board := checkerboard(targetSize, 8)
	sys.UpdateTexture2D(s.checker, core.GetPixels(board), targetSize, targetSize, core.SRGBA8)

	s.transform = sys.CreateBuffer()
	sys.ReserveBuffer(s.transform, 64, core.DynamicBuffer)
	sys.BindUniformBuffer(0, s.transform)

	s.quad = upload(sys, model.Quad())

	if modelPath != "" {
		data, err := ioutil.ReadFile(modelPath)
		if err != nil {
			return nil, err
		}
		obj, err := model.ImportColladaObject(data)
		if err != nil {
			return nil, err
		}
		m := upload(sys, obj.Mesh())
		s.object = &m
		s.obj = obj
		log.WithField("vertices", len(obj.Mesh().Vertices)).Infof("loaded %s", modelPath)
	}
	return s, nil
}

func (s *scene) draw(elapsed time.Duration) {
	angle := float32(elapsed.Seconds())

	s.sys.BindRenderTarget(s.target)
	s.sys.ClearScreen(core.AllBuffers())
	s.sys.BindTexture2D(0, s.checker)
	s.sys.UseShaderProgram(s.flat)
	s.sys.Draw(s.quad.vertices, s.quad.indices, s.quad.elements)

	s.sys.BindRenderTarget(handle.DefaultRenderTarget)
	s.sys.ClearScreen(core.DefaultClearState())

	u := model.Uniform{
		Model:      glm.HomogRotate3DY(angle),
		View:       glm.LookAtV(glm.Vec3{0, 0, 4}, glm.Vec3{}, glm.Vec3{0, 1, 0}),
		Projection: glm.Perspective(glm.DegToRad(45), s.aspect, 0.1, 100),
	}
	s.sys.UpdateBuffer(s.transform, u.Bytes(), core.DynamicBuffer)
	s.sys.BindRenderTargetTexture(0, s.target, core.ColorAttachment)
	s.sys.UseShaderProgram(s.textured)
	s.sys.Draw(s.quad.vertices, s.quad.indices, s.quad.elements)

	if s.object != nil {
		s.obj.SetRotation(glm.HomogRotate3DY(-angle))
		s.obj.SetPosition(glm.Translate3D(1.5, 0, 0))
		u.Model = model.Transform(s.obj)
		// commands execute in order, the quad above already drew with the old matrix
		s.sys.UpdateBuffer(s.transform, u.Bytes(), core.DynamicBuffer)
		s.sys.UseShaderProgram(s.shaded)
		s.sys.Draw(s.object.vertices, s.object.indices, s.object.elements)
	}
}

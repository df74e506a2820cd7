// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"image"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/device/soft"
)

type window struct {
	*sdl.Window
	shown uint64
}

func newWindow(cfg core.Configuration) (*window, error) {
	w, err := sdl.CreateWindow(cfg.Window.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Renderer.ScreenWidth),
		int32(cfg.Renderer.ScreenHeight),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, err
	}
	return &window{Window: w}, nil
}

// show copies the last presented frame of device onto the window, if it
// was not shown already
func (w *window) show(device *soft.Device) error {
	var err error
	device.Frame(func(img *image.RGBA, presented uint64) {
		if presented == w.shown || len(img.Pix) == 0 {
			return
		}
		w.shown = presented
		err = w.blit(img)
	})
	return err
}

func (w *window) blit(img *image.RGBA) error {
	dst, err := w.GetSurface()
	if err != nil {
		return err
	}
	// ABGR8888 is RGBA byte order on little endian machines
	src, err := sdl.CreateRGBSurfaceWithFormatFrom(unsafe.Pointer(&img.Pix[0]),
		int32(img.Rect.Dx()), int32(img.Rect.Dy()), 32, int32(img.Stride), sdl.PIXELFORMAT_ABGR8888)
	if err != nil {
		return err
	}
	defer src.Free()
	if err := src.BlitScaled(nil, dst, nil); err != nil {
		return err
	}
	return w.UpdateSurface()
}

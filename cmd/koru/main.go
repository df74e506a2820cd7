// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"os"
	"os/user"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/framewire/capture"
	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/device/soft"
	"github.com/devblok/framewire/device/trace"
	"github.com/devblok/framewire/gfx"
	"github.com/devblok/framewire/handoff"
	"github.com/devblok/framewire/render"
	"github.com/devblok/framewire/shader"
	"github.com/devblok/framewire/utility/kar"
)

func init() {
	runtime.LockOSThread()
}

var (
	cpuProfile  = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile  = flag.String("memprof", "", "Profile memory usage into a file")
	envFiles    = flag.String("env", "", "Comma separated dotenv files to load configuration from")
	captureFile = flag.String("capture", "", "Record device calls of every frame into a kar archive")
	modelFile   = flag.String("model", "", "Collada model to show instead of the built in quad")
)

func shaderSource(cfg core.ResourceConfiguration) (shader.Source, func(), error) {
	var (
		sources []shader.Source
		closers []func()
	)
	if cfg.ShaderDirectory != "" {
		sources = append(sources, shader.Dir(cfg.ShaderDirectory))
	}
	if cfg.Archive != "" {
		archive, err := kar.OpenFile(cfg.Archive)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { archive.Close() })
		sources = append(sources, shader.FromArchive(archive, "shaders"))
	}
	sources = append(sources, shader.FromFinder(packr.NewBox("./shaders")))
	return shader.Overlay(sources...), func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func main() {
	flag.Parse()

	var files []string
	if *envFiles != "" {
		files = strings.Split(*envFiles, ",")
	}
	configuration, err := core.LoadConfiguration(files...)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(configuration.LogLevel)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	shaders, closeShaders, err := shaderSource(configuration.Resources)
	if err != nil {
		log.Fatal(err)
	}
	defer closeShaders()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		log.Fatal(err)
	}
	defer sdl.Quit()

	window, err := newWindow(configuration)
	if err != nil {
		log.Fatal(err)
	}
	defer window.Destroy()

	var (
		device   *soft.Device
		recorder *capture.Recorder
		renderer = configuration.Renderer
	)
	system, err := gfx.Init(renderer, func() (handoff.Executor, error) {
		device = soft.New(int(renderer.ScreenWidth), int(renderer.ScreenHeight), shaders, log.StandardLogger())
		opts := render.Options{Limits: renderer.Limits, StrictHandles: renderer.StrictHandles}
		if *captureFile == "" {
			return render.NewContext(device, opts), nil
		}
		traced := trace.New(device, log.StandardLogger())
		r, err := capture.NewRecorder(render.NewContext(traced, opts), traced, currentUser(), log.StandardLogger())
		if err != nil {
			device.Destroy()
			return nil, err
		}
		recorder = r
		return r, nil
	}, log.StandardLogger())
	if err != nil {
		log.Fatal(err)
	}

	scene, err := newScene(system, configuration, *modelFile)
	if err != nil {
		log.Fatal(err)
	}

	runErr := run(system, scene, window, device, configuration.Time)
	if err := system.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	if recorder != nil {
		if err := saveCapture(recorder, *captureFile); err != nil {
			log.Error(err)
		}
	}
	if runErr != nil {
		log.Fatal(runErr)
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
	}
}

func run(system *gfx.System, scene *scene, window *window, device *soft.Device, cfg core.TimeConfiguration) error {
	timeService := core.NewTime(cfg)
	defer timeService.Stop()
	ctx := context.Background()

	for {
		select {
		case <-timeService.FpsTicker().C:
			scene.draw(timeService.Elapsed())
			if err := system.SubmitFrame(ctx); err != nil {
				return err
			}
			if err := window.show(device); err != nil {
				log.Errorf("showing frame: %s", err)
			}
		case <-timeService.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Type != sdl.KEYDOWN {
						continue
					}
					switch et.Keysym.Sym {
					case sdl.K_ESCAPE:
						return nil
					case sdl.K_F5:
						log.Info("reloading shaders")
						system.ReloadShaders()
					}
				case *sdl.QuitEvent:
					return nil
				}
			}
		}
	}
}

func saveCapture(recorder *capture.Recorder, path string) error {
	defer recorder.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := recorder.WriteTo(f); err != nil {
		return err
	}
	log.WithField("frames", recorder.Frames()).Infof("capture written to %s", path)
	return nil
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

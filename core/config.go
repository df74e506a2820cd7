package core

import (
	"github.com/devblok/framewire/handle"
	log "github.com/sirupsen/logrus"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time      TimeConfiguration
	Renderer  RendererConfiguration
	Window    WindowConfiguration
	Resources ResourceConfiguration

	// LogLevel is the level the programs set on the standard logger
	LogLevel log.Level
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the interval between window event polls in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	// CommandBufferSize is the capacity of each of the two frame buffers in bytes
	CommandBufferSize int

	// Limits caps the number of resources of every category
	Limits handle.Limits

	// StrictHandles makes use of a handle that was never created
	// fatal. When false such commands are logged and skipped.
	StrictHandles bool

	ScreenWidth  uint32
	ScreenHeight uint32
}

// WindowConfiguration configures the demo window
type WindowConfiguration struct {
	Title string
}

// ResourceConfiguration points at the locations resources are read from
type ResourceConfiguration struct {
	// ShaderDirectory overrides the built in shaders when set
	ShaderDirectory string

	// Archive is a kar archive resources are read from, if set
	Archive string
}

// Default sizes
const (
	DefaultCommandBufferSize = 1 << 20
	DefaultScreenWidth       = 800
	DefaultScreenHeight      = 600
	DefaultFramesPerSecond   = 60
	DefaultEventPollDelay    = 5
)

// DefaultConfiguration returns the configuration used when nothing is overridden
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: DefaultFramesPerSecond,
			EventPollDelay:  DefaultEventPollDelay,
		},
		Renderer: RendererConfiguration{
			CommandBufferSize: DefaultCommandBufferSize,
			Limits:            handle.DefaultLimits,
			StrictHandles:     true,
			ScreenWidth:       DefaultScreenWidth,
			ScreenHeight:      DefaultScreenHeight,
		},
		Window: WindowConfiguration{
			Title: "Koru3D",
		},
		LogLevel: log.InfoLevel,
	}
}

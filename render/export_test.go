package render

import "github.com/devblok/framewire/wire"

// SetRelease replaces the payload release of Execute until restore is called
func SetRelease(fn func(wire.Releaser)) (restore func()) {
	old := release
	release = fn
	return func() { release = old }
}

package render

import (
	"fmt"

	"github.com/devblok/framewire/wire"
)

// FatalKind classifies fatal execution errors
type FatalKind uint8

// Fatal error kinds
const (
	// ShaderCompile is a program that failed to load, compile or link
	ShaderCompile FatalKind = iota + 1
	// ContractViolation is a command naming a resource that was never
	// created or a binding point that does not exist
	ContractViolation
	// CorruptFrame is a frame that could not be decoded
	CorruptFrame
)

func (k FatalKind) String() string {
	switch k {
	case ShaderCompile:
		return "shader compile"
	case ContractViolation:
		return "contract violation"
	case CorruptFrame:
		return "corrupt frame"
	}
	return "unknown"
}

// FatalError stops frame execution. The renderer cannot continue after
// one, the caller is expected to shut down.
type FatalError struct {
	Kind  FatalKind
	Frame uint64
	Tag   wire.Tag
	Err   error
}

func (e *FatalError) Error() string {
	if e.Kind == CorruptFrame {
		return fmt.Sprintf("render: %s %d: %s", e.Kind, e.Frame, e.Err)
	}
	return fmt.Sprintf("render: %s in frame %d at %s: %s", e.Kind, e.Frame, e.Tag, e.Err)
}

// Unwrap returns the underlying error
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Package shader loads shader program sources. Sources may pull in
// shared files with include lines of the form
//
//	@lighting.glsl
//
// which are looked up in the program's include directory.
package shader

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobuffalo/packd"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/utility/kar"
)

// maxIncludeDepth bounds nested includes, which also stops include cycles
const maxIncludeDepth = 16

// Source reads shader files by name
type Source interface {
	ReadFile(name string) ([]byte, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(name string) ([]byte, error)

// ReadFile implements interface
func (f SourceFunc) ReadFile(name string) ([]byte, error) {
	return f(name)
}

// Dir reads shaders from a directory on disk
func Dir(root string) Source {
	return SourceFunc(func(name string) ([]byte, error) {
		return ioutil.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	})
}

// FromFinder reads shaders from a packr box or any other packd.Finder
func FromFinder(f packd.Finder) Source {
	return SourceFunc(f.Find)
}

// FromArchive reads shaders stored under prefix in a kar archive
func FromArchive(ar *kar.Archive, prefix string) Source {
	return SourceFunc(func(name string) ([]byte, error) {
		return ar.ReadAll(path.Join(prefix, name))
	})
}

// Overlay tries every source in order and returns the first hit
func Overlay(sources ...Source) Source {
	return SourceFunc(func(name string) ([]byte, error) {
		var err error
		for _, src := range sources {
			var data []byte
			if data, err = src.ReadFile(name); err == nil {
				return data, nil
			}
		}
		if err == nil {
			err = errors.New("no shader sources")
		}
		return nil, err
	})
}

// Program holds the resolved source of every stage of a program.
// Stages the program does not have are nil.
type Program struct {
	Info        core.ShaderInfo
	Vertex      []byte
	TessControl []byte
	TessEval    []byte
	Geometry    []byte
	Fragment    []byte
}

// Load reads every stage named in info and resolves its includes.
// A stage file that cannot be read fails the load, an include that
// cannot be read is logged and skipped.
func Load(src Source, info core.ShaderInfo, logger log.FieldLogger) (*Program, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	p := &Program{Info: info}
	stages := []struct {
		name string
		dst  *[]byte
	}{
		{info.Vertex, &p.Vertex},
		{info.TessControl, &p.TessControl},
		{info.TessEval, &p.TessEval},
		{info.Geometry, &p.Geometry},
		{info.Fragment, &p.Fragment},
	}
	for _, stage := range stages {
		if stage.name == "" {
			continue
		}
		data, err := src.ReadFile(stage.name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading shader %s", stage.name)
		}
		if *stage.dst, err = resolve(src, data, info.IncludeDir, logger.WithField("shader", stage.name), 0); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func resolve(src Source, data []byte, includeDir string, logger log.FieldLogger, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, errors.Errorf("includes nested deeper than %d", maxIncludeDepth)
	}
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "@") {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}

		name := path.Join(includeDir, strings.TrimSpace(line[1:]))
		included, err := src.ReadFile(name)
		if err != nil {
			logger.WithError(err).Warnf("could not include %s", name)
			continue
		}
		resolved, err := resolve(src, included, includeDir, logger, depth+1)
		if err != nil {
			return nil, errors.Wrapf(err, "including %s", name)
		}
		out.Write(resolved)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

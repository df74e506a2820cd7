package shader_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"

	"github.com/devblok/framewire/core"
	"github.com/devblok/framewire/shader"
	"github.com/devblok/framewire/utility/kar"
)

func mapSource(files map[string]string) shader.Source {
	return shader.SourceFunc(func(name string) ([]byte, error) {
		if s, ok := files[name]; ok {
			return []byte(s), nil
		}
		return nil, os.ErrNotExist
	})
}

func TestLoadResolvesIncludes(t *testing.T) {
	c := qt.New(t)
	src := mapSource(map[string]string{
		"a.vert":          "#version 330\n@light.glsl\nvoid main() {}\n",
		"a.frag":          "out vec4 color;\n",
		"inc/light.glsl":  "@common.glsl\nvec3 light;\n",
		"inc/common.glsl": "float pi;\n",
	})

	p, err := shader.Load(src, core.VSFS("a.vert", "a.frag", "inc"), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(string(p.Vertex), qt.Equals, "#version 330\nfloat pi;\nvec3 light;\nvoid main() {}\n")
	c.Assert(string(p.Fragment), qt.Equals, "out vec4 color;\n")
	c.Assert(p.Geometry, qt.IsNil)
}

func TestLoadMissingIncludeIsSkipped(t *testing.T) {
	src := mapSource(map[string]string{"a.vert": "@gone.glsl\nx\n", "a.frag": ""})
	p, err := shader.Load(src, core.VSFS("a.vert", "a.frag"), nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, string(p.Vertex), qt.Equals, "x\n")
}

func TestLoadMissingStage(t *testing.T) {
	src := mapSource(map[string]string{"a.vert": ""})
	_, err := shader.Load(src, core.VSFS("a.vert", "a.frag"), nil)
	qt.Assert(t, err, qt.ErrorMatches, `reading shader a.frag: .*`)
}

func TestLoadIncludeCycle(t *testing.T) {
	src := mapSource(map[string]string{"a.vert": "@a.vert\n", "a.frag": ""})
	_, err := shader.Load(src, core.VSFS("a.vert", "a.frag"), nil)
	qt.Assert(t, err, qt.ErrorMatches, `including a.vert: .*includes nested deeper than 16`)
}

func TestDir(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(dir, "sub"), 0755), qt.IsNil)
	c.Assert(ioutil.WriteFile(filepath.Join(dir, "sub", "x.vert"), []byte("dir"), 0644), qt.IsNil)

	data, err := shader.Dir(dir).ReadFile("sub/x.vert")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "dir")
}

func TestFromArchive(t *testing.T) {
	c := qt.New(t)
	builder, err := kar.NewBuilder(kar.Header{Version: 1})
	c.Assert(err, qt.IsNil)
	defer builder.Close()
	c.Assert(builder.Add("shaders/x.frag", strings.NewReader("packed")), qt.IsNil)
	var buf bytes.Buffer
	_, err = builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	ar, err := kar.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	data, err := shader.FromArchive(ar, "shaders").ReadFile("x.frag")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "packed")
}

type finder map[string]string

func (f finder) Find(name string) ([]byte, error) {
	if s, ok := f[name]; ok {
		return []byte(s), nil
	}
	return nil, errors.Errorf("%s not in box", name)
}

func (f finder) FindString(name string) (string, error) {
	b, err := f.Find(name)
	return string(b), err
}

func TestOverlay(t *testing.T) {
	c := qt.New(t)
	src := shader.Overlay(
		mapSource(map[string]string{"a": "first"}),
		shader.FromFinder(finder{"a": "second", "b": "boxed"}),
	)
	a, err := src.ReadFile("a")
	c.Assert(err, qt.IsNil)
	c.Assert(string(a), qt.Equals, "first")
	b, err := src.ReadFile("b")
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Equals, "boxed")
	_, err = src.ReadFile("c")
	c.Assert(err, qt.ErrorMatches, "c not in box")
}

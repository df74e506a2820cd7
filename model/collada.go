package model

import (
	"sync"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/devblok/framewire/util/collada"
)

// ImportColladaObject reads given file and converts the first Collada
// geometry to engine's internal object
func ImportColladaObject(fileContents []byte) (Object, error) {
	doc, err := collada.Decode(fileContents)
	if err != nil {
		return nil, err
	}

	mesh := &doc.Geometries[0].Mesh
	tris := &mesh.Triangles
	stride := tris.Stride()
	if stride == 0 || len(tris.Index)%stride != 0 {
		return nil, errors.Errorf("triangles of %s: %d indices do not split into %d inputs", doc.Geometries[0].ID, len(tris.Index), stride)
	}

	type attribute struct {
		input  collada.Input
		source *collada.Source
	}
	var attrs []attribute
	for _, semantic := range []string{collada.SemanticVertex, collada.SemanticNormal, collada.SemanticTexCoord} {
		in, ok := tris.Input(semantic)
		if !ok {
			if semantic == collada.SemanticVertex {
				return nil, errors.New("triangles have no vertex input")
			}
			continue
		}
		src, err := mesh.Lookup(in)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attribute{input: in, source: src})
	}

	vertices := make([]Vertex, 0, len(tris.Index)/stride)
	for corner := 0; corner < len(tris.Index)/stride; corner++ {
		var vert Vertex
		indices := tris.Index[stride*corner : stride*corner+stride]
		for _, a := range attrs {
			el, err := a.source.Element(indices[a.input.Offset])
			if err != nil {
				return nil, err
			}
			switch a.input.Semantic {
			case collada.SemanticVertex:
				copy(vert.Pos[:], el)
			case collada.SemanticNormal:
				copy(vert.Normal[:], el)
			case collada.SemanticTexCoord:
				copy(vert.UV[:], el)
			}
		}
		vertices = append(vertices, vert)
	}

	return &ColladaObject{
		position: glm.Ident4(),
		rotation: glm.Ident4(),
		mesh:     &Mesh{Vertices: vertices},
	}, nil
}

// ColladaObject is imported from a collada (.dae) file.
// Loaded and held in memory
type ColladaObject struct {
	mutex    sync.RWMutex
	position glm.Mat4
	rotation glm.Mat4

	mesh *Mesh
}

// SetPosition implements interface
func (co *ColladaObject) SetPosition(pos glm.Mat4) {
	co.mutex.Lock()
	co.position = pos
	co.mutex.Unlock()
}

// Position implements interface
func (co *ColladaObject) Position() glm.Mat4 {
	co.mutex.RLock()
	defer co.mutex.RUnlock()
	return co.position
}

// SetRotation implements interface
func (co *ColladaObject) SetRotation(rot glm.Mat4) {
	co.mutex.Lock()
	co.rotation = rot
	co.mutex.Unlock()
}

// Rotation implements interface
func (co *ColladaObject) Rotation() glm.Mat4 {
	co.mutex.RLock()
	defer co.mutex.RUnlock()
	return co.rotation
}

// Mesh implements interface
func (co *ColladaObject) Mesh() *Mesh {
	return co.mesh
}

// Transform is the model matrix of an object, its rotation applied
// before its position
func Transform(o Object) glm.Mat4 {
	return o.Position().Mul4(o.Rotation())
}

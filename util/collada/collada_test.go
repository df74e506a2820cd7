package collada_test

import (
	"encoding/xml"
	"reflect"
	"strings"
	"testing"

	"github.com/devblok/framewire/util/collada"
)

func TestTrianglesDecode(t *testing.T) {
	data := `
		<triangles material="Material-material" count="12">
		<input semantic="VERTEX" source="#Cube-mesh-vertices" offset="0"/>
		<input semantic="NORMAL" source="#Cube-mesh-normals" offset="1"/>
		<p>0 0 2 0 3 0 7 1 5 1 4 1 4 2 1 2 0 2 5 3 2 3 1 3 2 4 7 4 3 4 0 5 7 5 4 5
		0 6 1 6 2 6 7 7 6 7 5 7 4 8 5 8 1 8 5 9 6 9 2 9 2 10 6 10 7 10 0 11 3 11 7 11</p>
		</triangles>
	`
	var triangles collada.Triangles
	if err := xml.Unmarshal([]byte(data), &triangles); err != nil {
		t.Fatal(err)
	}

	if triangles.Material != "Material-material" {
		t.Fatalf("incorrect material: %s", triangles.Material)
	}
	if triangles.Count != 12 {
		t.Fatalf("incorrect count: %d", triangles.Count)
	}
	if len(triangles.Inputs) != 2 {
		t.Fatalf("number of inputs incorrect: %d", len(triangles.Inputs))
	}
	if len(triangles.Index) != 12*6 {
		t.Fatalf("number of index elements incorrect: %d", len(triangles.Index))
	}
	if triangles.Stride() != 2 {
		t.Fatalf("incorrect stride: %d", triangles.Stride())
	}

	normal, ok := triangles.Input(collada.SemanticNormal)
	if !ok || normal.Offset != 1 {
		t.Errorf("normal input: got %+v, found %v", normal, ok)
	}
	if _, ok := triangles.Input(collada.SemanticTexCoord); ok {
		t.Error("found a texture coordinate input")
	}
}

func TestBadIndex(t *testing.T) {
	var triangles collada.Triangles
	err := xml.Unmarshal([]byte(`<triangles count="1"><p>0 x 1</p></triangles>`), &triangles)
	if err == nil || !strings.HasPrefix(err.Error(), "triangle index: ") {
		t.Fatalf("expected a triangle index error, got: %v", err)
	}
}

func TestInputDecode(t *testing.T) {
	data := `
	<object>
		<input semantic="VERTEX" source="#Cube-mesh-vertices" offset="0" />
		<input semantic="NORMAL" source="#Cube-mesh-normals" offset="1" />
		<input semantic="TEXTUR" source="#Cube-mesh-textures" offset="2" />
	</object>
	`

	type Object struct {
		XMLNname xml.Name        `xml:"object"`
		Inputs   []collada.Input `xml:"input"`
	}

	var obj Object
	if err := xml.Unmarshal([]byte(data), &obj); err != nil {
		t.Fatal(err)
	}

	for i, want := range []collada.Input{
		{Semantic: "VERTEX", Source: "#Cube-mesh-vertices", Offset: 0},
		{Semantic: "NORMAL", Source: "#Cube-mesh-normals", Offset: 1},
		{Semantic: "TEXTUR", Source: "#Cube-mesh-textures", Offset: 2},
	} {
		if obj.Inputs[i] != want {
			t.Errorf("input %d: expected %+v, got %+v", i, want, obj.Inputs[i])
		}
	}
}

func TestFloatsDecode(t *testing.T) {
	data := `<float_array id="Cube-mesh-normals-array" count="36">0 0 -1 0 0 1 1 0 -2.38419e-7 0 -1 -4.76837e-7 -1 2.38419e-7 -1.49012e-7 2.68221e-7 1 2.38419e-7 0 0 -1 0 0 1 1 -5.96046e-7 3.27825e-7 -4.76837e-7 -1 0 -1 2.38419e-7 -1.19209e-7 2.08616e-7 1 0</float_array>`

	var floats collada.Floats
	if err := xml.Unmarshal([]byte(data), &floats); err != nil {
		t.Fatal(err)
	}

	if len(floats.Data) != 36 {
		t.Fatalf("bad number of floats, got: %d", len(floats.Data))
	}

	if floats.ID != "Cube-mesh-normals-array" {
		t.Fatalf("bad id, got: %s", floats.ID)
	}
}

func TestLookup(t *testing.T) {
	doc, err := collada.Decode([]byte(`<COLLADA><library_geometries><geometry id="g">
		<mesh>
			<source id="g-positions">
				<float_array id="g-positions-array">1 2 3 4 5 6</float_array>
				<technique_common><accessor count="2" stride="3"/></technique_common>
			</source>
			<vertices id="g-vertices"><input semantic="POSITION" source="#g-positions"/></vertices>
		</mesh>
	</geometry></library_geometries></COLLADA>`))
	if err != nil {
		t.Fatal(err)
	}
	mesh := &doc.Geometries[0].Mesh

	src, err := mesh.Lookup(collada.Input{Semantic: collada.SemanticVertex, Source: "#g-vertices"})
	if err != nil {
		t.Fatal(err)
	}
	if src.ID != "g-positions" {
		t.Fatalf("vertices resolved to %s", src.ID)
	}

	el, err := src.Element(1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(el, []float32{4, 5, 6}) {
		t.Errorf("element 1: got %v", el)
	}
	if _, err := src.Element(2); err == nil || err.Error() != "element 2 out of range in g-positions" {
		t.Errorf("element 2: got %v", err)
	}

	if _, err := mesh.Lookup(collada.Input{Source: "#nowhere"}); err == nil || err.Error() != "source nowhere not found" {
		t.Errorf("lookup of a missing source: got %v", err)
	}
}

func TestDecodeWithoutGeometry(t *testing.T) {
	_, err := collada.Decode([]byte(`<COLLADA></COLLADA>`))
	if err == nil || err.Error() != "collada document has no geometry" {
		t.Fatalf("expected missing geometry error, got: %v", err)
	}
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/devblok/framewire/utility/kar"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func buildArchive(t testing.TB, files map[string]string) []byte {
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	for name, contents := range files {
		if err := builder.Add(name, strings.NewReader(contents)); err != nil {
			t.Fatal(err)
		}
	}

	buf := bytes.NewBuffer([]byte{})
	if written, err := builder.WriteTo(buf); err != nil {
		t.Fatal(err)
	} else {
		t.Logf("written %d", written)
	}
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	data := buildArchive(t, map[string]string{"test": testString1, "test2": testString2})

	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	f, err := ar.Open("test")
	if err != nil {
		t.Fatal(err)
	}

	result := make([]byte, len(testString1))
	n, err := io.ReadFull(f, result)
	if err != nil {
		t.Error(err)
	}
	t.Log(n)

	if strings.Compare(string(result), testString1) != 0 {
		t.Error("test string does not match up")
	}
	if f.Size() != int64(len(testString1)) {
		t.Errorf("size %d", f.Size())
	}
}

func TestCreateAndReadAll(t *testing.T) {
	data := buildArchive(t, map[string]string{"test": testString1, "test2": testString2})

	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	for name, expected := range map[string]string{"test": testString1, "test2": testString2} {
		f, err := ar.ReadAll(name)
		if err != nil {
			t.Error(err)
		}
		if strings.Compare(string(f), expected) != 0 {
			t.Errorf("%s does not match up", name)
		}
	}
}

func TestNames(t *testing.T) {
	data := buildArchive(t, map[string]string{"b": "2", "a": "1", "c/d": "3"})
	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	names := ar.Names()
	if strings.Join(names, ",") != "a,b,c/d" {
		t.Errorf("unexpected names %v", names)
	}
	if ar.Header().Author != "devblok" {
		t.Errorf("unexpected author %q", ar.Header().Author)
	}
	if e, ok := ar.Stat("c/d"); !ok || e.Size != 1 {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestOpenMissing(t *testing.T) {
	data := buildArchive(t, map[string]string{"a": "1"})
	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ar.ReadAll("nope"); errors.Cause(err) != kar.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenNotAnArchive(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("KA"),
		[]byte("TAR\x00000000000000000000000"),
		append([]byte("KAR\x00"), make([]byte, 16)...),
	} {
		if _, err := kar.Open(bytes.NewReader(data)); errors.Cause(err) != kar.ErrFileFormat {
			t.Errorf("expected ErrFileFormat for %q, got %v", data, err)
		}
	}
}

func TestEmptyFile(t *testing.T) {
	data := buildArchive(t, map[string]string{"empty": ""})
	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	f, err := ar.ReadAll("empty")
	if err != nil {
		t.Fatal(err)
	}
	if len(f) != 0 {
		t.Errorf("expected no data, got %d bytes", len(f))
	}
}

func BenchmarkReadAll(b *testing.B) {
	data := buildArchive(b, map[string]string{"big": strings.Repeat(testString2, 4096)})
	ar, err := kar.Open(bytes.NewReader(data))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ar.ReadAll("big"); err != nil {
			b.Fatal(err)
		}
	}
}

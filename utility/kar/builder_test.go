// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"errors"
	"io/ioutil"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAddAndWrite(t *testing.T) {
	builder, err := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	if err := builder.Add("test", strings.NewReader("idunvovkjnreovmegihjbrqlkmfrjnb")); err != nil {
		t.Error(err)
	}
	if err := builder.Add("test2", strings.NewReader("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb")); err != nil {
		t.Error(err)
	}

	if len(builder.files) != 2 {
		t.Error("incorrect number of files present")
	}

	buf := bytes.NewBuffer(nil)
	num, err := builder.WriteTo(buf)
	if err != nil {
		t.Error(err)
	}
	if num != int64(buf.Len()) {
		t.Errorf("reported %d bytes written, buffer holds %d", num, buf.Len())
	}
	if !bytes.HasPrefix(buf.Bytes(), magic[:]) {
		t.Error("archive does not start with magic")
	}
}

func TestAddDuplicate(t *testing.T) {
	builder, err := NewBuilder(Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	if err := builder.Add("a", strings.NewReader("1")); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("a", strings.NewReader("2")); err == nil {
		t.Error("duplicate name accepted")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestAddFailureCanBeRetried(t *testing.T) {
	builder, err := NewBuilder(Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	if err := builder.Add("a", failingReader{}); err == nil {
		t.Fatal("failing reader accepted")
	}
	if builder.Len() != 0 {
		t.Errorf("failed add left %d files", builder.Len())
	}
	temps, err := ioutil.ReadDir(builder.tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(temps) != 0 {
		t.Errorf("failed add left %d temporary files", len(temps))
	}

	if err := builder.Add("a", strings.NewReader("1")); err != nil {
		t.Errorf("retry after a failed add: %s", err)
	}
	if builder.Len() != 1 {
		t.Errorf("expected 1 file, got %d", builder.Len())
	}
}

func TestAddConcurrently(t *testing.T) {
	builder, err := NewBuilder(Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			if err := builder.Add(name, strings.NewReader(strings.Repeat(name, 100*i))); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if builder.Len() != 16 {
		t.Errorf("expected 16 files, got %d", builder.Len())
	}
}

func TestCloseRemovesTemp(t *testing.T) {
	builder, err := NewBuilder(Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	builder.Add("a", strings.NewReader("data"))
	if err := builder.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(builder.tempDir); !os.IsNotExist(err) {
		t.Error("temp dir survived Close")
	}
	if err := builder.Add("b", strings.NewReader("data")); err != ErrBuilderEmpty {
		t.Errorf("expected ErrBuilderEmpty, got %v", err)
	}
}

func TestHeaderSizeEncoding(t *testing.T) {
	bts := int64ToBinary(123456789)
	if len(bts) != HeaderSizeNumberLength {
		t.Fatalf("encoded size is %d bytes", len(bts))
	}
	num, err := binaryToint64(bts)
	if err != nil {
		t.Fatal(err)
	}
	if num != 123456789 {
		t.Errorf("decoded %d", num)
	}
}

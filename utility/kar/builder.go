// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) (*Builder, error) {
	temp, err := ioutil.TempDir("", "karBuilder")
	if err != nil {
		return nil, errors.Wrap(ErrTempFail, err.Error())
	}
	builder := &Builder{
		tempDir: temp,
		header:  header,
		names:   make(map[string]struct{}),
	}
	// catches builders that were never closed
	runtime.SetFinalizer(builder, func(builder *Builder) {
		os.RemoveAll(builder.tempDir)
	})
	return builder, nil
}

type tempFile struct {

	// Name is the actual name of the file
	Name string

	// TempName is the temporary name given by the Builder
	TempName string

	// Size in uncompressed state
	Size int64

	Compressed int64
}

// Builder is the high level builder for the archive format.
// Arhives are versioned and cannot be appended to, This Builder
// is the way to create an archive. Whenever Add is called, KarBuilder
// will create a temporary dir, where it will store compressed files,
// then finally bundling them togeter and writing them out with WriteTo.
type Builder struct {
	tempDir string
	header  Header

	mutex sync.Mutex
	files []tempFile
	names map[string]struct{}
}

// Add appends data to the builder with a given name.
// Will block until lz4 finishes compression. Is safe
// to use concurrently in different goroutines. A failed
// Add leaves nothing behind, the name can be added again.
func (b *Builder) Add(name string, data io.Reader) error {
	name = filepath.ToSlash(name)
	b.mutex.Lock()
	if b.names == nil {
		b.mutex.Unlock()
		return ErrBuilderEmpty
	}
	if _, ok := b.names[name]; ok {
		b.mutex.Unlock()
		return errors.Wrap(ErrDuplicate, name)
	}
	b.names[name] = struct{}{}
	b.mutex.Unlock()

	entry, err := b.compress(name, data)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err != nil {
		if b.names != nil {
			delete(b.names, name)
		}
		return err
	}
	b.files = append(b.files, entry)
	return nil
}

// compress writes data into a new temporary file, which is removed
// again when anything fails
func (b *Builder) compress(name string, data io.Reader) (entry tempFile, err error) {
	f, err := ioutil.TempFile(b.tempDir, "entry")
	if err != nil {
		return entry, errors.Wrap(ErrTempFail, err.Error())
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(f.Name())
		}
	}()

	writer := lz4.NewWriter(f)
	written, err := io.Copy(writer, data)
	if err != nil {
		return entry, errors.Wrapf(err, "compressing %s", name)
	}
	if err = writer.Close(); err != nil {
		return entry, errors.Wrapf(err, "compressing %s", name)
	}
	if err = f.Sync(); err != nil {
		return entry, err
	}
	info, err := f.Stat()
	if err != nil {
		return entry, err
	}
	return tempFile{
		Name:       name,
		TempName:   filepath.Base(f.Name()),
		Size:       written,
		Compressed: info.Size(),
	}, nil
}

// Len is the number of files added so far
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.files)
}

// WriteTo bundles and writes all of the files added to the Builder
// into a kar archive that is ready to use. Files are ordered by name.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	files := append([]tempFile(nil), b.files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	header := b.header
	header.Index = nil
	var offset int64
	for _, v := range files {
		header.Index = append(header.Index, IndexEntry{
			Name:           v.Name,
			Size:           v.Size,
			CompressedSize: v.Compressed,
			Offset:         offset,
		})
		offset += v.Compressed
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, part := range [][]byte{magic[:], int64ToBinary(int64(len(rawHeader))), rawHeader} {
		n, err := w.Write(part)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	for _, v := range files {
		f, err := os.Open(filepath.Join(b.tempDir, v.TempName))
		if err != nil {
			return total, errors.Wrap(ErrTempFail, err.Error())
		}
		n, err := io.Copy(w, f)
		f.Close()
		total += n
		if err != nil {
			return total, err
		}
		if n != v.Compressed {
			return total, errors.Wrapf(ErrIOMisc, "%s changed while bundling", v.Name)
		}
	}
	return total, nil
}

// Close removes the temporary files of the builder
func (b *Builder) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files = nil
	b.names = nil
	runtime.SetFinalizer(b, nil)
	return os.RemoveAll(b.tempDir)
}

// Package capture records the device calls every executed frame made and
// stores them as a kar archive, one gob encoded entry per frame.
package capture

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/device/trace"
	"github.com/devblok/framewire/handoff"
	"github.com/devblok/framewire/utility/kar"
	"github.com/devblok/framewire/wire"
)

// Version of the capture layout, stored in the archive header
const Version = 1

const framePrefix = "frames/"

// Frame is the device activity of one executed frame
type Frame struct {
	Number uint64
	Err    string
	Calls  []trace.Call
}

// Ops counts the calls of every operation in f
func (f *Frame) Ops() map[string]int {
	ops := make(map[string]int)
	for _, c := range f.Calls {
		ops[c.Op]++
	}
	return ops
}

func frameName(n uint64) string {
	return fmt.Sprintf("%s%08d", framePrefix, n)
}

// Recorder is an executor that records the calls the wrapped executor
// makes through dev. It runs on the render thread.
type Recorder struct {
	exec handoff.Executor
	dev  *trace.Device
	log  log.FieldLogger

	// Limit stops recording after that many frames, 0 records all
	Limit int

	builder *kar.Builder
	frame   uint64
	pending *Frame
}

// NewRecorder wraps exec, which must drive dev
func NewRecorder(exec handoff.Executor, dev *trace.Device, author string, logger log.FieldLogger) (*Recorder, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	builder, err := kar.NewBuilder(kar.Header{
		Author:      author,
		DateCreated: time.Now().Unix(),
		Version:     Version,
	})
	if err != nil {
		return nil, err
	}
	return &Recorder{
		exec:    exec,
		dev:     dev,
		log:     logger.WithField("component", "capture"),
		builder: builder,
	}, nil
}

// Execute implements handoff.Executor
func (r *Recorder) Execute(buf *wire.Buffer) error {
	r.frame++
	err := r.exec.Execute(buf)
	r.pending = &Frame{Number: r.frame}
	if err != nil {
		r.pending.Err = err.Error()
	}
	if _, ok := r.exec.(handoff.Presenter); !ok || err != nil {
		r.flush()
	}
	return err
}

// Present implements handoff.Presenter. The present call is recorded
// with the frame it shows.
func (r *Recorder) Present() error {
	var err error
	if p, ok := r.exec.(handoff.Presenter); ok {
		err = p.Present()
	}
	r.flush()
	return err
}

func (r *Recorder) flush() {
	if r.pending == nil {
		return
	}
	f := r.pending
	r.pending = nil
	f.Calls = r.dev.Drain()
	if r.Limit > 0 && r.builder.Len() >= r.Limit {
		return
	}

	var data bytes.Buffer
	if err := gob.NewEncoder(&data).Encode(f); err != nil {
		r.log.WithField("frame", f.Number).Errorf("encoding frame: %s", err)
		return
	}
	if err := r.builder.Add(frameName(f.Number), &data); err != nil {
		r.log.WithField("frame", f.Number).Errorf("storing frame: %s", err)
	}
}

// Destroy implements handoff.Destroyer
func (r *Recorder) Destroy() {
	if d, ok := r.exec.(handoff.Destroyer); ok {
		d.Destroy()
	}
}

// Frames is the number of frames stored so far
func (r *Recorder) Frames() int {
	return r.builder.Len()
}

// WriteTo writes the capture archive. It must not be called while the
// render thread is still executing frames.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	return r.builder.WriteTo(w)
}

// Close removes the recorder's temporary files
func (r *Recorder) Close() error {
	return r.builder.Close()
}

// Capture reads frames back from an archive
type Capture struct {
	archive *kar.Archive
	names   []string
}

// Open reads the capture stored in archive
func Open(archive *kar.Archive) (*Capture, error) {
	if v := archive.Header().Version; v != Version {
		return nil, errors.Errorf("capture version %d, expected %d", v, Version)
	}
	c := &Capture{archive: archive}
	for _, name := range archive.Names() {
		if strings.HasPrefix(name, framePrefix) {
			c.names = append(c.names, name)
		}
	}
	sort.Strings(c.names)
	return c, nil
}

// Author is who recorded the capture
func (c *Capture) Author() string {
	return c.archive.Header().Author
}

// Recorded is when the capture was recorded
func (c *Capture) Recorded() time.Time {
	return time.Unix(c.archive.Header().DateCreated, 0)
}

// Len is the number of frames in the capture
func (c *Capture) Len() int {
	return len(c.names)
}

// Frame decodes the i-th stored frame
func (c *Capture) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(c.names) {
		return nil, errors.Errorf("frame %d out of range, capture holds %d", i, len(c.names))
	}
	data, err := c.archive.ReadAll(c.names[i])
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", c.names[i])
	}
	var f Frame
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", c.names[i])
	}
	return &f, nil
}

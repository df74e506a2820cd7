package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobuffalo/packr"
	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/capture"
)

// frame list columns
const (
	columnIndex = iota
	columnNumber
	columnCalls
	columnStatus
)

var staticResources = packr.NewBox("./resources")

// viewer shows the frames of one capture, the calls of the selected
// frame on the right
type viewer struct {
	capt   *capture.Capture
	store  *gtk.ListStore
	calls  *gtk.TextBuffer
	status *gtk.Label
}

func object(builder *gtk.Builder, name string) (glib.IObject, error) {
	obj, err := builder.GetObject(name)
	if err != nil {
		return nil, errors.Wrapf(err, "korued.glade has no %s", name)
	}
	return obj, nil
}

func newViewer(builder *gtk.Builder, capt *capture.Capture) (*viewer, error) {
	obj, err := object(builder, "frameList")
	if err != nil {
		return nil, err
	}
	list, ok := obj.(*gtk.TreeView)
	if !ok {
		return nil, errors.New("frameList is not a tree view")
	}
	if obj, err = object(builder, "callView"); err != nil {
		return nil, err
	}
	callView, ok := obj.(*gtk.TextView)
	if !ok {
		return nil, errors.New("callView is not a text view")
	}
	if obj, err = object(builder, "statusLabel"); err != nil {
		return nil, err
	}
	status, ok := obj.(*gtk.Label)
	if !ok {
		return nil, errors.New("statusLabel is not a label")
	}

	store, err := gtk.ListStoreNew(glib.TYPE_INT, glib.TYPE_INT, glib.TYPE_INT, glib.TYPE_STRING)
	if err != nil {
		return nil, err
	}
	list.SetModel(store)
	for _, col := range []struct {
		title  string
		column int
	}{{"Frame", columnNumber}, {"Calls", columnCalls}, {"Status", columnStatus}} {
		renderer, err := gtk.CellRendererTextNew()
		if err != nil {
			return nil, err
		}
		c, err := gtk.TreeViewColumnNewWithAttribute(col.title, renderer, "text", col.column)
		if err != nil {
			return nil, err
		}
		list.AppendColumn(c)
	}

	calls, err := callView.GetBuffer()
	if err != nil {
		return nil, err
	}
	v := &viewer{capt: capt, store: store, calls: calls, status: status}

	selection, err := list.GetSelection()
	if err != nil {
		return nil, err
	}
	selection.SetMode(gtk.SELECTION_SINGLE)
	selection.Connect("changed", func() { v.selected(selection) })
	return v, nil
}

// load fills the frame list
func (v *viewer) load() {
	var failed int
	for i := 0; i < v.capt.Len(); i++ {
		f, err := v.capt.Frame(i)
		if err != nil {
			log.WithError(err).Errorf("reading frame %d", i)
			continue
		}
		status := "ok"
		if f.Err != "" {
			status = "failed"
			failed++
		}
		if err := v.store.Set(v.store.Append(),
			[]int{columnIndex, columnNumber, columnCalls, columnStatus},
			[]interface{}{i, int(f.Number), len(f.Calls), status}); err != nil {
			log.WithError(err).Error("filling frame list")
		}
	}
	v.status.SetText(fmt.Sprintf("%s, recorded %s by %s, %d frames, %d failed",
		*captureFile, v.capt.Recorded().Format("2006-01-02 15:04"), v.capt.Author(), v.capt.Len(), failed))
}

func (v *viewer) selected(selection *gtk.TreeSelection) {
	_, iter, ok := selection.GetSelected()
	if !ok {
		return
	}
	value, err := v.store.GetValue(iter, columnIndex)
	if err != nil {
		log.Error(err)
		return
	}
	goValue, err := value.GoValue()
	if err != nil {
		log.Error(err)
		return
	}
	index, _ := goValue.(int)
	f, err := v.capt.Frame(index)
	if err != nil {
		v.calls.SetText(err.Error())
		return
	}
	v.calls.SetText(describe(f))
}

// describe lists the calls of f followed by a per operation count
func describe(f *capture.Frame) string {
	var sb strings.Builder
	if f.Err != "" {
		fmt.Fprintf(&sb, "frame failed: %s\n\n", f.Err)
	}
	for i, c := range f.Calls {
		fmt.Fprintf(&sb, "%4d  %s\n", i, c)
	}

	ops := f.Ops()
	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)
	sb.WriteString("\n")
	for _, op := range names {
		fmt.Fprintf(&sb, "%-20s %d\n", op, ops[op])
	}
	return sb.String()
}

func buildInterface(capt *capture.Capture) (*gtk.Application, error) {
	app, err := gtk.ApplicationNew("org.koru3d.korued", glib.APPLICATION_FLAGS_NONE)
	if err != nil {
		return nil, err
	}

	app.Connect("startup", func() {
		log.Info("Application starting")
	})

	app.Connect("activate", func() {
		log.Info("Application activating")

		resource, err := staticResources.FindString("korued.glade")
		if err != nil {
			log.Fatal(err)
		}

		builder, err := gtk.BuilderNew()
		if err != nil {
			log.Fatal(err)
		}
		if err := builder.AddFromString(resource); err != nil {
			log.Fatal(err)
		}

		v, err := newViewer(builder, capt)
		if err != nil {
			log.Fatal(err)
		}
		v.load()

		obj, err := object(builder, "mainWindow")
		if err != nil {
			log.Fatal(err)
		}
		win, ok := obj.(*gtk.Window)
		if !ok {
			log.Error(errors.New("failed to cast Object from builder to Window"))
			return
		}
		win.SetDefaultSize(900, 600)
		win.ShowAll()
		app.AddWindow(win)
	})

	app.Connect("shutdown", func() {
		log.Info("Application shutting down")
	})
	return app, nil
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/devblok/framewire/capture"
	"github.com/devblok/framewire/utility/kar"
)

const usage = `usage: korucli <command> [flags]

commands:
  pack     bundle files and folders into a kar archive
  unpack   extract a kar archive
  list     list the files of a kar archive
  dump     print the frames of a capture archive
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "pack":
		err = pack(args)
	case "unpack":
		err = unpack(args)
	case "list":
		err = list(args)
	case "dump":
		err = dump(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func pack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	var (
		author  = fs.String("author", currentUserName(), "Set the author of the package")
		version = fs.Int64("version", 1, "Archive version number to create it with")
		dstFile = fs.String("f", "out.kar", "Destination file")
		silent  = fs.Bool("s", false, "Silent")
	)
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("pack: nothing to pack")
	}

	if _, err := os.Stat(*dstFile); err == nil {
		return errors.Errorf("destination %s exists, will not overwrite", *dstFile)
	}

	type file struct{ path, name string }
	var files []file
	for _, root := range fs.Args() {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			name, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if name == "." {
				name = filepath.Base(path)
			}
			files = append(files, file{path: path, name: name})
			return nil
		})
		if err != nil {
			return err
		}
	}

	builder, err := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	var group errgroup.Group
	for _, f := range files {
		f := f
		group.Go(func() error {
			r, err := os.Open(f.path)
			if err != nil {
				return err
			}
			defer r.Close()
			if err := builder.Add(f.name, r); err != nil {
				return errors.Wrapf(err, "adding %s", f.path)
			}
			if !*silent {
				log.Infof("added %s", f.name)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	dst, err := os.Create(*dstFile)
	if err != nil {
		return err
	}
	defer dst.Close()
	n, err := builder.WriteTo(dst)
	if err != nil {
		return err
	}
	if !*silent {
		log.Infof("wrote %d files, %d bytes to %s", builder.Len(), n, *dstFile)
	}
	return nil
}

func openArchive(fs *flag.FlagSet) (*kar.Archive, error) {
	if fs.NArg() != 1 {
		return nil, errors.Errorf("%s: expected one archive", fs.Name())
	}
	return kar.OpenFile(fs.Arg(0))
}

func unpack(args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	dstDir := fs.String("d", ".", "Destination directory")
	fs.Parse(args)

	archive, err := openArchive(fs)
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, name := range archive.Names() {
		path := filepath.Join(*dstDir, filepath.FromSlash(name))
		if !strings.HasPrefix(path, filepath.Clean(*dstDir)) {
			return errors.Errorf("unpack: %s escapes the destination", name)
		}
		data, err := archive.ReadAll(name)
		if err != nil {
			return errors.Wrapf(err, "reading %s", name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func list(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	archive, err := openArchive(fs)
	if err != nil {
		return err
	}
	defer archive.Close()

	header := archive.Header()
	fmt.Printf("author: %s\ncreated: %s\nversion: %d\n\n",
		header.Author, time.Unix(header.DateCreated, 0).Format(time.RFC3339), header.Version)
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tCOMPRESSED")
	for _, name := range archive.Names() {
		e, _ := archive.Stat(name)
		fmt.Fprintf(w, "%s\t%d\t%d\n", e.Name, e.Size, e.CompressedSize)
	}
	return w.Flush()
}

func dump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	var (
		frame   = fs.Int("frame", -1, "Only print the given frame, counting from 0")
		summary = fs.Bool("summary", false, "Print call counts instead of calls")
	)
	fs.Parse(args)

	archive, err := openArchive(fs)
	if err != nil {
		return err
	}
	defer archive.Close()
	capt, err := capture.Open(archive)
	if err != nil {
		return err
	}

	fmt.Printf("capture by %s, %s, %d frames\n", capt.Author(), capt.Recorded().Format(time.RFC3339), capt.Len())
	first, last := 0, capt.Len()
	if *frame >= 0 {
		first, last = *frame, *frame+1
	}
	for i := first; i < last; i++ {
		f, err := capt.Frame(i)
		if err != nil {
			return err
		}
		fmt.Printf("\nframe %d, %d calls\n", f.Number, len(f.Calls))
		if f.Err != "" {
			fmt.Printf("  failed: %s\n", f.Err)
		}
		if *summary {
			ops := f.Ops()
			names := make([]string, 0, len(ops))
			for op := range ops {
				names = append(names, op)
			}
			sort.Strings(names)
			for _, op := range names {
				fmt.Printf("  %-20s %d\n", op, ops[op])
			}
			continue
		}
		for _, c := range f.Calls {
			fmt.Printf("  %s\n", c)
		}
	}
	return nil
}

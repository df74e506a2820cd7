package main

import (
	"flag"
	"os"

	"github.com/gotk3/gotk3/gtk"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/capture"
	"github.com/devblok/framewire/utility/kar"
)

var captureFile = flag.String("capture", "", "Capture archive to open")

func init() {
	gtk.Init(&os.Args)
}

func main() {
	flag.Parse()
	if *captureFile == "" {
		log.Fatal("korued: -capture is required")
	}

	archive, err := kar.OpenFile(*captureFile)
	if err != nil {
		log.Fatal(err)
	}
	capt, err := capture.Open(archive)
	if err != nil {
		log.Fatal(err)
	}

	app, err := buildInterface(capt)
	if err != nil {
		log.Fatal(err)
	}
	// flags are ours, gtk sees only the program name
	code := app.Run(os.Args[:1])
	archive.Close()
	os.Exit(code)
}

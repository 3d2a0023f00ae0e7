// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/ezrec/lc3/emulator"
	"github.com/ezrec/lc3/io"
)

const (
	EXIT_OK        = 0   // Halted.
	EXIT_FAILURE   = 1   // Load failure, or runtime error.
	EXIT_USAGE     = 2   // Bad command line.
	EXIT_INTERRUPT = 130 // Interrupted by a signal.
	EXIT_ABORT     = 134 // Unimplemented instruction.
)

func main() {
	log.SetFlags(0)

	os.Exit(lc3(os.Args[1:], os.Stdin, os.Stdout))
}

// save assembles each source into an image file next to it.
func save(emu *emulator.Emulator, paths []string) (code int) {
	for _, path := range paths {
		if !emulator.IsSource(path) {
			log.Printf("%v: not an assembly source", path)
			return EXIT_FAILURE
		}

		prog, err := emu.AssembleFile(path)
		if err != nil {
			log.Printf("%v", err)
			return EXIT_FAILURE
		}

		image := strings.TrimSuffix(path, filepath.Ext(path)) + ".obj"
		err = os.WriteFile(image, prog.Image(), 0o644)
		if err != nil {
			log.Printf("%v", err)
			return EXIT_FAILURE
		}
	}

	return EXIT_OK
}

// device opens the keyboard and display. The returned closer releases
// them, and is safe to call more than once.
func device(input string, output string, stdin *os.File, stdout *os.File) (dev io.Device, closer func() error, err error) {
	if input == "-" && output == "-" {
		var con *io.Console
		con, err = io.NewConsole(stdin, stdout)
		if err != nil {
			return
		}
		dev = con
		closer = con.Close
		return
	}

	tape := &io.Tape{Input: stdin, Output: stdout}
	var files []*os.File
	var once sync.Once
	closer = func() (err error) {
		once.Do(func() {
			for _, file := range files {
				err = errors.Join(err, file.Close())
			}
		})
		return
	}

	if input != "-" {
		var inf *os.File
		inf, err = os.Open(input)
		if err != nil {
			return
		}
		files = append(files, inf)
		tape.Input = inf
	}

	if output != "-" {
		var ouf *os.File
		ouf, err = os.Create(output)
		if err != nil {
			closer()
			return
		}
		files = append(files, ouf)
		tape.Output = ouf
	}

	dev = tape

	return
}

// lc3 runs the command line, returning the process exit code.
func lc3(args []string, stdin *os.File, stdout *os.File) (code int) {
	var save_only bool
	var input string
	var output string
	var verbose bool

	flags := flag.NewFlagSet("lc3", flag.ContinueOnError)
	flags.BoolVar(&save_only, "s", false, "Assemble .asm files to .obj images, do not execute")
	flags.StringVar(&input, "i", "-", "Keyboard input")
	flags.StringVar(&output, "o", "-", "Display output")
	flags.BoolVar(&verbose, "v", false, "Verbose mode")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: lc3 [options] image-file1 ...\n")
		flags.PrintDefaults()
	}

	err := flags.Parse(args)
	if err != nil {
		return EXIT_USAGE
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return EXIT_USAGE
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	if save_only {
		return save(emu, flags.Args())
	}

	for _, path := range flags.Args() {
		err = emu.LoadFile(path)
		if err != nil {
			log.Printf("failed to load image: %v", err)
			return EXIT_FAILURE
		}
	}

	dev, closer, err := device(input, output, stdin, stdout)
	if err != nil {
		log.Printf("%v", err)
		return EXIT_FAILURE
	}
	defer closer()
	emu.Attach(dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-finished:
		case <-interrupt:
			cancel()
			// GETC may be blocked on the keyboard.
			closer()
			log.Printf("interrupted")
			os.Exit(EXIT_INTERRUPT)
		}
	}()

	err = emu.Run(ctx)
	switch {
	case err == nil:
		code = EXIT_OK
	case errors.Is(err, context.Canceled):
		log.Printf("interrupted")
		code = EXIT_INTERRUPT
	case emulator.IsAbort(err):
		log.Printf("%v", err)
		code = EXIT_ABORT
	default:
		log.Printf("%v", err)
		code = EXIT_FAILURE
	}

	return
}

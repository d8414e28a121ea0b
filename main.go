// main.go - CLI entrypoint
//
// Grounded on main.go's flag-based configuration shape: core count,
// quantum size, backing filesystem image path, GUI vs headless terminal,
// and a debug/single-step toggle, per SPEC_FULL.md §2.

package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	cores := flag.Int("cores", 1, "number of CPU cores")
	quantum := flag.Int("quantum", 64, "instructions granted per thread per scheduling quantum")
	disk := flag.String("disk", "disk.img", "path to the persistent filesystem image")
	gui := flag.Bool("gui", false, "open a graphical terminal window instead of running headless")
	debug := flag.Bool("debug", false, "enable single-step debug logging")
	flag.Parse()

	cfg := Config{Cores: *cores, Quantum: *quantum, DiskPath: *disk, GUI: *gui, Debug: *debug}

	computer, err := NewComputer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", BuildName, err)
		os.Exit(1)
	}

	var initialImage []byte
	if args := flag.Args(); len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: reading %s: %v\n", BuildName, args[0], err)
			os.Exit(1)
		}
		initialImage = data
	}

	if err := computer.Boot(initialImage); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", BuildName, err)
		os.Exit(1)
	}
}

// Package main provides the cellpick command line tool.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"cellpick/internal/version"
)

const appTitle = "cellpick"

func main() {
	log.SetFlags(log.LstdFlags)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	name  string
	usage string
	run   func(args []string, stdout, stderr io.Writer) int
}

var commands = []command{
	{"calibrate", "-session S -pixel X,Y -stage X,Y [-label L]", runCalibrate},
	{"info", "-session S", runInfo},
	{"export", "-session S [-out FILE] [-image PATH] [-preview PNG]", runExport},
	{"validate", "FILE", runValidate},
	{"stats", "-session S", runStats},
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	switch args[0] {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "%s %s\n", appTitle, version.String())
		return 0
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	}

	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], stdout, stderr)
		}
	}

	fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\nCommands:\n", appTitle)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "  %-10s\n", "version")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/xavierarpa/openwork/internal/discover"
)

// runDiscover browses the local network for engines advertising
// themselves over mDNS and prints what it finds.
func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	timeout := fs.Duration("timeout", discover.DefaultBrowseTimeout, "How long to browse")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Fprintf(stdout, "Browsing for engines (%s)...\n", *timeout)
	engines, err := discover.Browse(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(engines) == 0 {
		fmt.Fprintln(stdout, "No engines found.")
		fmt.Fprintln(stdout, "Engines must have mDNS advertisement enabled to be discoverable.")
		return 0
	}

	for _, e := range engines {
		version := e.Version
		if version == "" {
			version = "unknown"
		}
		fmt.Fprintf(stdout, "  %-24s %-22s version %s\n", e.Name, e.Target, version)
	}
	fmt.Fprintf(stdout, "\nAttach with: openwork attach --engine <host:port>\n")
	return 0
}

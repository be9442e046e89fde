package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

// runShare renders the engine address as a QR code so another device
// on the network can attach without typing it.
func runShare(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	payload := "ws://" + cfg.Engine + "/ws"
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(stderr, "Error generating QR code: %v\n", err)
		fmt.Fprintf(stdout, "Engine: %s\n", cfg.Engine)
		return 1
	}

	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "===========================================")
	fmt.Fprintln(stdout, "         SCAN TO ATTACH")
	fmt.Fprintln(stdout, "===========================================")
	fmt.Fprintln(stdout, "")

	// Compact ASCII rendering using half-block characters.
	fmt.Fprint(stdout, qr.ToSmallString(false))

	fmt.Fprintln(stdout, "-------------------------------------------")
	fmt.Fprintf(stdout, "  Engine: %s\n", cfg.Engine)
	fmt.Fprintf(stdout, "  Stream: %s\n", payload)
	fmt.Fprintln(stdout, "===========================================")
	return 0
}

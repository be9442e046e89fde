package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd
var Version = "dev"

const usage = `openwork - terminal companion for a remote AI coding engine

Usage:
  openwork <command> [options]

Commands:
  attach        Connect to an engine and mirror its activity
  doctor        Diagnose config and engine connectivity
  discover      Browse the local network for engines
  launch        Start a local engine and wait until it is healthy
  share         Show the engine address as a QR code
  session list  List the engine's sessions
  session new   Create a session
  prompt <session> <text...>   Submit a prompt to a session
  permission list              List pending permission requests
  permission respond <id> <once|always|reject>  Reply to a request
  audit         List recorded permission decisions

Run 'openwork <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "attach":
		return runAttach(args[2:], stdout, stderr)
	case "doctor":
		return runDoctor(args[2:], stdout, stderr)
	case "discover":
		return runDiscover(args[2:], stdout, stderr)
	case "launch":
		return runLaunch(args[2:], stdout, stderr)
	case "share":
		return runShare(args[2:], stdout, stderr)
	case "session":
		return runSession(args[2:], stdout, stderr)
	case "prompt":
		return runPrompt(args[2:], stdout, stderr)
	case "permission":
		return runPermission(args[2:], stdout, stderr)
	case "audit":
		return runAudit(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "openwork %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}

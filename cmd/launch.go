package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xavierarpa/openwork/internal/engine"
	"github.com/xavierarpa/openwork/internal/launch"
)

// runLaunch spawns a local engine process, waits for it to become
// healthy, and optionally attaches to it.
func runLaunch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("launch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	cmdline := fs.String("cmd", "", "Engine command to run (overrides engine_cmd from config)")
	readyTimeout := fs.Duration("ready-timeout", 60*time.Second, "How long to wait for the engine to become healthy")
	attach := fs.Bool("attach", false, "Attach once the engine is healthy")
	tail := fs.Bool("tail", false, "Print engine output while waiting")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	command := *cmdline
	if command == "" {
		command = cfg.EngineCmd
	}
	if command == "" {
		fmt.Fprintln(stderr, "Error: no engine command; set engine_cmd in the config or pass --cmd")
		return 1
	}

	launchCfg := launch.Config{}
	if *tail {
		launchCfg.OnOutput = func(line string) { fmt.Fprintln(stdout, "  | "+line) }
	}
	proc := launch.New(launchCfg)

	parts := splitCommand(command)
	if len(parts) == 0 {
		fmt.Fprintln(stderr, "Error: engine command is empty")
		return 1
	}
	fmt.Fprintf(stdout, "Starting engine: %s\n", command)
	if err := proc.Start(parts[0], parts[1:]...); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	client := engine.NewClient(cfg.Engine)
	defer client.Close()
	probe := func(ctx context.Context) error {
		_, err := client.Health(ctx)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *readyTimeout)
	defer cancel()
	fmt.Fprintf(stdout, "Waiting for %s to become healthy...\n", cfg.Engine)
	if err := proc.WaitReady(ctx, probe); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		for _, line := range lastLines(proc.Lines(), 10) {
			fmt.Fprintln(stderr, "  | "+line)
		}
		proc.Stop()
		return 1
	}
	fmt.Fprintln(stdout, "Engine is healthy.")

	if *attach {
		attachArgs := []string{"--engine", cfg.Engine}
		if cf.configPath != "" {
			attachArgs = append(attachArgs, "--config", cf.configPath)
		}
		return runAttach(attachArgs, stdout, stderr)
	}

	fmt.Fprintf(stdout, "Attach with: openwork attach --engine %s\n", cfg.Engine)
	return 0
}

// splitCommand splits an engine command line into argv, honoring single
// and double quotes so binaries and arguments with spaces survive. No
// escape processing beyond the quotes; the config is not a shell.
func splitCommand(s string) []string {
	var args []string
	var cur strings.Builder
	var quote rune
	inToken := false
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args
}

func lastLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

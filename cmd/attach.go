package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/xavierarpa/openwork/internal/mirror"
)

// runAttach connects to an engine and mirrors its activity to stdout
// until interrupted. With --session it also selects a session so its
// message history, plan and streamed parts flow through the mirror.
func runAttach(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	sessionID := fs.String("session", "", "Session to select after connecting")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	sup, cleanup := buildSupervisor(cfg, stderr)
	defer cleanup()
	store := sup.Store()

	// Subscribe before connecting so the initial cold loads are seen.
	events, unsubscribe := store.Subscribe(
		mirror.TopicConnection,
		mirror.TopicSessions,
		mirror.TopicStatus,
		mirror.TopicMessages,
		mirror.TopicPlan,
		mirror.TopicPermissions,
		mirror.TopicError,
	)
	defer unsubscribe()

	ctx := context.Background()
	fmt.Fprintf(stdout, "Connecting to %s...\n", cfg.Engine)
	if err := sup.Connect(ctx, cfg.Engine); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sup.Disconnect()

	if *sessionID != "" {
		if err := sup.SelectSession(ctx, *sessionID); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	fmt.Fprintln(stdout, "Attached. Press Ctrl+C to detach.")

	for {
		select {
		case <-interrupt:
			fmt.Fprintln(stdout, "Detaching...")
			return 0
		case topic := <-events:
			printTopic(stdout, store, topic)
		}
	}
}

// printTopic renders one changed slice of mirror state.
func printTopic(w io.Writer, store *mirror.Store, topic mirror.Topic) {
	switch topic {
	case mirror.TopicConnection:
		state, target := store.ConnState()
		fmt.Fprintf(w, "[conn] %s %s\n", state, target)
	case mirror.TopicSessions:
		sessions := store.Sessions()
		fmt.Fprintf(w, "[sessions] %d known\n", len(sessions))
		for _, sess := range sessions {
			marker := " "
			if sess.ID == store.SelectedSession() {
				marker = "*"
			}
			fmt.Fprintf(w, "  %s %s  %s (%s)\n", marker, sess.ID, sess.Title, store.Status(sess.ID))
		}
	case mirror.TopicStatus:
		if id := store.SelectedSession(); id != "" {
			fmt.Fprintf(w, "[status] %s: %s\n", id, store.Status(id))
		}
	case mirror.TopicMessages:
		msgs := store.Messages()
		if len(msgs) == 0 {
			return
		}
		last := msgs[len(msgs)-1]
		fmt.Fprintf(w, "[message] %s %s: %s\n", last.Info.Role, last.Info.ID, renderParts(last))
	case mirror.TopicPlan:
		for _, item := range store.Plan() {
			fmt.Fprintf(w, "[plan] %-12s %s\n", item.Status, item.Content)
		}
	case mirror.TopicPermissions:
		for _, perm := range store.Permissions() {
			fmt.Fprintf(w, "[permission] %s wants %s (%v)\n", perm.ID, perm.Permission, perm.Patterns)
		}
		if active, ok := store.ActivePermission(); ok {
			fmt.Fprintf(w, "[permission] respond with: openwork permission respond %s <once|always|reject>\n", active.ID)
		}
	case mirror.TopicError:
		if err := store.LastError(); err != nil {
			fmt.Fprintf(w, "[error] %v\n", err)
		}
	}
}

// renderParts flattens a message's text parts into one line.
func renderParts(msg mirror.MessageView) string {
	out := ""
	for _, part := range msg.Parts {
		switch part.Type {
		case "text":
			out += part.Text
		case "tool":
			out += "[" + part.Tool + "]"
		}
	}
	if len(out) > 120 {
		out = out[:117] + "..."
	}
	return out
}

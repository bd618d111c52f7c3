package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/bridge"
	"github.com/wippyai/callbridge/channel"
	"github.com/wippyai/callbridge/config"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/native/wasmlib"
)

func main() {
	var (
		window      = flag.Uint("window", 1, "Window handle to subscribe on")
		kinds       = flag.String("kinds", "", "Kinds to fire (comma-separated, default all)")
		veto        = flag.Bool("veto", false, "Veto window close requests")
		showMetrics = flag.Bool("metrics", false, "Print counters after the run")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *showMetrics {
		cfg.Metrics = true
	}

	if *window == 0 || *window > 0xFF {
		fmt.Fprintln(os.Stderr, "Usage: evdemo [-window 1..255] [-kinds key,char,...] [-veto] [-metrics]")
		fmt.Fprintln(os.Stderr, "       evdemo -i  (interactive mode)")
		os.Exit(1)
	}
	h := callbridge.Handle(*window)

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg, h, *veto); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	selected, err := parseKinds(*kinds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(os.Stdout, cfg, h, selected, *veto); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// installLoggers routes the package-level loggers through logger.
func installLoggers(logger *zap.Logger) {
	bridge.SetLogger(logger.Named("bridge"))
	channel.SetLogger(logger.Named("channel"))
	wasmlib.SetLogger(logger.Named("wasmlib"))
}

func parseKinds(s string) ([]event.Kind, error) {
	if s == "" {
		return event.Kinds(), nil
	}
	byName := make(map[string]event.Kind, event.KindCount)
	for _, k := range event.Kinds() {
		byName[k.String()] = k
	}
	var out []event.Kind
	for _, name := range strings.Split(s, ",") {
		k, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown kind %q", name)
		}
		out = append(out, k)
	}
	return out, nil
}

func run(w io.Writer, cfg *config.Config, h callbridge.Handle, kinds []event.Kind, veto bool) error {
	ctx := context.Background()

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	installLoggers(logger)

	d, err := newDemo(ctx, cfg, logger, h)
	if err != nil {
		return err
	}
	d.veto = veto

	if err := d.subscribeAll(ctx); err != nil {
		_ = d.close(ctx)
		return fmt.Errorf("subscribe: %w", err)
	}
	fmt.Fprintf(w, "Subscribed %d kinds on window %s\n\n", len(d.subs), h)

	for _, kind := range kinds {
		if err := d.fire(ctx, kind); err != nil {
			fmt.Fprintf(w, "fire %s: %v\n", kind, err)
		}
	}
	for _, line := range d.log {
		fmt.Fprintln(w, line)
	}

	lines, err := d.metricLines()
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		fmt.Fprintf(w, "\n--- metrics ---\n")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}

	return d.close(ctx)
}

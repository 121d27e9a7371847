// Command mcphost runs the orchestration host: it connects the configured
// model provider to the configured tool servers and answers prompts, either
// one-shot or interactively.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/effective-security/mcphost/callbacks"
	"github.com/effective-security/mcphost/host"
	"github.com/effective-security/mcphost/hostfactory"
	"github.com/effective-security/xlog"
)

func main() {
	cfgFile := flag.String("cfg", "mcphost.yaml", "path to the configuration file")
	prompt := flag.String("prompt", "", "run one prompt and exit; omit for interactive mode")
	verbose := flag.Bool("verbose", false, "print run events")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if *debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.WARNING)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []hostfactory.Option
	if *verbose {
		opts = append(opts, hostfactory.WithCallback(callbacks.NewPrinter(os.Stderr, callbacks.ModeDefault)))
	}

	h, err := hostfactory.Load(ctx, *cfgFile, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start host: %v\n", err)
		os.Exit(1)
	}

	if *prompt != "" {
		if err := runOnce(ctx, h, *prompt); err != nil {
			os.Exit(1)
		}
		return
	}

	runInteractive(ctx, h)
}

func runOnce(ctx context.Context, h *host.Host, input string) error {
	res, err := h.Run(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed (%s): %v\n", res.FailureReason, err)
		return err
	}
	fmt.Println(res.Content)
	return nil
}

func runInteractive(ctx context.Context, h *host.Host) {
	fmt.Println("mcphost started. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" {
			return
		}

		res, err := h.Run(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run failed (%s): %v\n", res.FailureReason, err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		fmt.Printf("Assistant: %s\n\n", res.Content)
	}
}

// Command siting lays out solar rows and wind turbines inside ground
// polygons, stores the results and reports on them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/internal/dispatcher"

	"github.com/spf13/pflag"
)

// BuildDate can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"
)

const AppName = "siting"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	logLevel := fs.String("log-level", "", "override the configured logLevel")
	render := fs.Bool("render", false, "print presentation updates to stdout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintf(stderr, "usage: %s [--config dir] [--render] <command> [args]\n", AppName)
		fmt.Fprintf(stderr, "run '%s help' for the command list\n", AppName)
		return 2
	}

	opts := options{
		configDir: *configDir,
		logLevel:  *logLevel,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
	}
	if *render {
		sw := &syncWriter{w: stdout}
		opts.stdout, opts.render = sw, sw
	}

	a, err := newApp(ctx, opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	code := 0
	out, err := a.dispatcher.Dispatch(ctx, dispatcher.Event{Command: strings.ToLower(rest[0]), Args: rest[1:]})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		code = 1
	}
	// the presenter may still be writing to stdout until Close returns
	if closeErr := a.Close(); closeErr != nil {
		fmt.Fprintln(stderr, "error during shutdown:", closeErr)
		if code == 0 {
			code = 1
		}
	}
	if err == nil {
		if err := printResult(stdout, out); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}
	return code
}

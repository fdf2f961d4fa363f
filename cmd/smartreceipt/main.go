package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/smartreceipt/internal/api"
	"github.com/zombor/smartreceipt/internal/config"
	"github.com/zombor/smartreceipt/internal/receipt"
)

var version = "dev"

func main() {
	config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run builds the command tree, executes the selected command and returns
// the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout)
	root := app.command()

	err := root.ParseAndRun(ctx, args, ff.WithEnvVarPrefix(config.EnvPrefix))
	selected := root.GetSelected()
	if selected == nil {
		selected = root
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected))
		if errors.Is(err, ff.ErrHelp) {
			return 0
		}
		return 1
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	default:
		slog.Debug("Command failed", "error", err)
		fmt.Fprintf(stderr, "error: %s\n", describe(err))
		return 1
	}
}

// describe prefers the user-facing text for backend and export errors and
// falls back to the raw error for everything else, such as flag parsing.
func describe(err error) string {
	var (
		validationErr *api.ValidationError
		networkErr    *api.NetworkError
		serverErr     *api.ServerError
	)
	if errors.As(err, &validationErr) || errors.As(err, &networkErr) ||
		errors.As(err, &serverErr) || errors.Is(err, receipt.ErrEmptyExport) {
		return api.UserMessage(err)
	}
	return err.Error()
}

// setupLogging installs a text handler on stderr at the configured level
func setupLogging(level string) error {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

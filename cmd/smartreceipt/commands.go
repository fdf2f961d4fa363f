package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/smartreceipt/internal/api"
	"github.com/zombor/smartreceipt/internal/config"
	"github.com/zombor/smartreceipt/internal/dashboard"
	"github.com/zombor/smartreceipt/internal/notify"
	"github.com/zombor/smartreceipt/internal/receipt"
)

// errUsage marks a command invoked with the wrong arguments
var errUsage = errors.New("invalid usage")

// app holds the parsed configuration shared by every command
type app struct {
	cfg    config.Config
	stdout io.Writer
}

func newApp(stdout io.Writer) *app {
	return &app{stdout: stdout}
}

// command builds the root command and its subcommands
func (a *app) command() *ff.Command {
	rootFlags := ff.NewFlagSet("smartreceipt")
	rootFlags.StringVar(&a.cfg.APIURL, 0, "api-url", config.DefaultAPIURL, "receipt backend base URL")
	rootFlags.StringVar(&a.cfg.LogLevel, 0, "log-level", "info", "log level: debug, info, warn or error")

	return &ff.Command{
		Name:      "smartreceipt",
		Usage:     "smartreceipt [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "upload, browse and export receipts",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			a.uploadCommand(rootFlags),
			a.listCommand(rootFlags),
			a.showCommand(rootFlags),
			a.deleteCommand(rootFlags),
			a.analyticsCommand(rootFlags),
			a.categoriesCommand(rootFlags),
			a.healthCommand(rootFlags),
			a.exportCommand(rootFlags),
			a.serveCommand(rootFlags),
			{
				Name:      "version",
				Usage:     "smartreceipt version",
				ShortHelp: "print the version",
				Flags:     ff.NewFlagSet("version").SetParent(rootFlags),
				Exec: func(ctx context.Context, args []string) error {
					fmt.Fprintln(a.stdout, version)
					return nil
				},
			},
		},
	}
}

// setup validates the configuration and wires the backend client
func (a *app) setup() (*api.Client, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogging(a.cfg.LogLevel); err != nil {
		return nil, err
	}
	slog.Debug("Using backend", "url", a.cfg.APIURL)
	return api.NewClient(a.cfg.APIURL), nil
}

// controller wires a dashboard controller to the backend
func (a *app) controller() (*dashboard.Controller, error) {
	client, err := a.setup()
	if err != nil {
		return nil, err
	}
	return dashboard.NewController(client), nil
}

// report prints success and info notifications. Errors are returned to
// main, which prints them once.
func (a *app) report(c *dashboard.Controller) {
	for _, n := range c.Notifications() {
		if n.Kind != notify.Error {
			fmt.Fprintln(a.stdout, n.Message)
		}
	}
}

func (a *app) uploadCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("upload").SetParent(parent)
	return &ff.Command{
		Name:      "upload",
		Usage:     "smartreceipt upload FILE",
		ShortHelp: "upload a JPG or PNG receipt image for extraction",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: upload takes exactly one file", errUsage)
			}
			c, err := a.controller()
			if err != nil {
				return err
			}

			u, closeFile, err := openUpload(args[0])
			if err != nil {
				return err
			}
			defer closeFile()

			created, err := c.Upload(ctx, u)
			a.report(c)
			if err != nil {
				return err
			}
			printReceipt(a.stdout, *created)
			return nil
		},
	}
}

// openUpload opens path and describes it as an upload
func openUpload(path string) (api.Upload, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return api.Upload{}, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return api.Upload{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return api.Upload{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return api.Upload{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return api.Upload{
		Filename:    filepath.Base(path),
		ContentType: api.DetectContentType(path, head[:n]),
		Size:        info.Size(),
		Body:        f,
	}, func() { f.Close() }, nil
}

func (a *app) listCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("list").SetParent(parent)
	category := fs.StringLong("category", "", "only receipts of this category")
	query := fs.StringLong("query", "", "case-insensitive search on merchant and item names")
	return &ff.Command{
		Name:      "list",
		Usage:     "smartreceipt list [--category CATEGORY] [--query TEXT]",
		ShortHelp: "list receipts, newest first",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			selected, ok := receipt.ParseSelector(*category)
			if !ok {
				return fmt.Errorf("%w: unknown category %q", errUsage, *category)
			}
			c, err := a.controller()
			if err != nil {
				return err
			}
			if err := c.SelectCategory(ctx, selected); err != nil {
				return err
			}
			c.SetQuery(*query)
			printView(a.stdout, c.View())
			return nil
		},
	}
}

func (a *app) showCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("show").SetParent(parent)
	return &ff.Command{
		Name:      "show",
		Usage:     "smartreceipt show ID",
		ShortHelp: "show one receipt with its items",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: show takes exactly one receipt ID", errUsage)
			}
			c, err := a.controller()
			if err != nil {
				return err
			}
			r, err := c.Receipt(ctx, receipt.ID(args[0]))
			if err != nil {
				return err
			}
			printReceipt(a.stdout, *r)
			return nil
		},
	}
}

func (a *app) deleteCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("delete").SetParent(parent)
	return &ff.Command{
		Name:      "delete",
		Usage:     "smartreceipt delete ID",
		ShortHelp: "delete a receipt",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: delete takes exactly one receipt ID", errUsage)
			}
			c, err := a.controller()
			if err != nil {
				return err
			}
			err = c.Delete(ctx, receipt.ID(args[0]))
			a.report(c)
			return err
		},
	}
}

func (a *app) analyticsCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("analytics").SetParent(parent)
	return &ff.Command{
		Name:      "analytics",
		Usage:     "smartreceipt analytics",
		ShortHelp: "show spending totals by category and month",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			c, err := a.controller()
			if err != nil {
				return err
			}
			if err := c.LoadAnalytics(ctx); err != nil {
				return err
			}
			summary, _ := c.Summary()
			printSummary(a.stdout, summary)
			return nil
		},
	}
}

func (a *app) categoriesCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("categories").SetParent(parent)
	return &ff.Command{
		Name:      "categories",
		Usage:     "smartreceipt categories",
		ShortHelp: "list the categories the backend accepts",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			client, err := a.setup()
			if err != nil {
				return err
			}
			names, err := client.Categories(ctx)
			if err != nil {
				return err
			}
			printCategories(a.stdout, names)
			return nil
		},
	}
}

func (a *app) healthCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("health").SetParent(parent)
	return &ff.Command{
		Name:      "health",
		Usage:     "smartreceipt health",
		ShortHelp: "check that the backend is reachable",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			client, err := a.setup()
			if err != nil {
				return err
			}
			status, err := client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %s\n", client.BaseURL(), status.Status())
			return nil
		},
	}
}

func (a *app) exportCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(parent)
	category := fs.StringLong("category", "", "only export receipts of this category")
	fs.StringVar(&a.cfg.ExportDir, 0, "out", ".", "directory the CSV file is written to")
	return &ff.Command{
		Name:      "export",
		Usage:     "smartreceipt export [--category CATEGORY] [--out DIR]",
		ShortHelp: "export receipts to smartreceipt_export_<date>.csv",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			selected, ok := receipt.ParseSelector(*category)
			if !ok {
				return fmt.Errorf("%w: unknown category %q", errUsage, *category)
			}
			c, err := a.controller()
			if err != nil {
				return err
			}
			if err := c.SelectCategory(ctx, selected); err != nil {
				return err
			}

			d, err := receipt.NewDirDownloader(a.cfg.ExportDir)
			if err != nil {
				return err
			}
			filename, err := c.Export(d)
			if err != nil {
				return err
			}
			a.report(c)
			fmt.Fprintf(a.stdout, "Saved %s\n", d.Path(filename))
			return nil
		},
	}
}

func (a *app) serveCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	fs.IntVar(&a.cfg.Port, 0, "port", 8080, "dashboard HTTP port")
	return &ff.Command{
		Name:      "serve",
		Usage:     "smartreceipt serve [--port PORT]",
		ShortHelp: "run the local dashboard API",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			c, err := a.controller()
			if err != nil {
				return err
			}

			// The dashboard still starts when the backend is down; the
			// failure is queued as a notification for the browser.
			if err := c.Refresh(ctx); err != nil {
				slog.Warn("Initial refresh failed", "error", err)
			}

			server := dashboard.NewServer(c)
			addr := fmt.Sprintf(":%d", a.cfg.Port)
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(addr)
			}()

			slog.Info("Dashboard started", "address", fmt.Sprintf("http://localhost%s", addr), "backend", a.cfg.APIURL)

			select {
			case err := <-errCh:
				return fmt.Errorf("dashboard server: %w", err)
			case <-ctx.Done():
				slog.Info("Shutting down...")
				return nil
			}
		},
	}
}

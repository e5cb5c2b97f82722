package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/urfave/cli/v2"

	"nbrender/internal/app"
	"nbrender/internal/metrics"
	"nbrender/internal/render"
	u "nbrender/internal/utils"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "nbrender",
		Usage: "render Jupyter notebooks fetched by URL to HTML",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP render service",
				Action: serveAction,
			},
			{
				Name:      "render",
				Usage:     "render a single notebook URL and print the HTML",
				ArgsUsage: "URL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "write HTML to `FILE` instead of stdout",
					},
				},
				Action: renderAction,
			},
		},
	}
}

func loadConfig(c *cli.Context) u.Config {
	var cfg u.Config
	if path := c.String("config"); path != "" {
		cfg = u.LoadFrom(path)
	} else {
		cfg = u.Load()
	}
	// Allow common container env var to override chrome_path.
	if cfg.PDF.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.PDF.ChromePath = v
		}
	}
	return cfg
}

func initLogging(cfg u.Config) error {
	if err := ensureLogDir(cfg.Logger.File); err != nil {
		return err
	}
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	return nil
}

// ensureLogDir creates the parent directory of the log file, if any.
func ensureLogDir(file string) error {
	if file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func serveAction(c *cli.Context) error {
	cfg := loadConfig(c)
	if err := initLogging(cfg); err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	svc, err := render.NewFromConfig(cfg, render.WithObserver(rec))
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}

	server := app.SetupApp(app.Deps{Config: cfg, Renderer: svc, Metrics: rec})

	idleConnsClosed := make(chan struct{})
	startServer(server, cfg, idleConnsClosed)
	<-idleConnsClosed
	return nil
}

func renderAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: nbrender render [--out FILE] URL", 2)
	}

	// Stdout may carry the document, keep logs off it.
	u.SetConsoleWriter(c.App.ErrWriter)
	cfg := loadConfig(c)
	if err := initLogging(cfg); err != nil {
		return err
	}

	svc, err := render.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}
	res, err := svc.Render(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	var w io.Writer = c.App.Writer
	if out := c.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := io.WriteString(w, res.HTML); err != nil {
		return fmt.Errorf("failed to write html: %w", err)
	}
	return nil
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}

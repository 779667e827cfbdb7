package main

import (
	"fmt"
	"io"
	"log"
	"os"

	internalcli "github.com/atomnode/frontend/internal/cli"
	"github.com/atomnode/frontend/internal/config"
	"github.com/atomnode/frontend/internal/devmode"
	"github.com/atomnode/frontend/internal/handlers"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var version = "0.1.0"

// loadConfig resolves configuration from file, environment and flags
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), os.Getenv)
	if err != nil {
		return nil, err
	}

	if c.IsSet("root") {
		cfg.Frontend.Root = c.String("root")
	}
	if c.IsSet("entry") {
		cfg.Frontend.Entry = c.String("entry")
	}
	if c.IsSet("dev") {
		cfg.Dev.Enabled = c.Bool("dev")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildServerDependencies creates all dependencies needed for the server
func buildServerDependencies(cfg *config.Config, logOutput io.Writer) (internalcli.ServerDependencies, error) {
	var deps internalcli.ServerDependencies

	deps.ServerConfig = cfg.Server

	// Development mode injects its client into the entry page
	var inject []byte
	if cfg.Dev.Enabled {
		mode, err := devmode.New(cfg.Frontend.Root, devmode.Options{
			HMR:     cfg.Dev.HMR,
			Console: cfg.Dev.Console,
		})
		if err != nil {
			return deps, fmt.Errorf("failed to start development mode: %w", err)
		}
		deps.Dev = mode
		// Non-nil so the entry is re-read after every reload
		inject = []byte{}
		if script := mode.Script(); script != nil {
			inject = script
		}
	}

	entryHandler, err := handlers.NewEntryHandler(cfg.Frontend.FS(), cfg.Frontend.Entry, inject)
	if err != nil {
		if deps.Dev != nil {
			deps.Dev.Close()
		}
		return deps, fmt.Errorf("failed to create entry handler: %w", err)
	}
	deps.EntryHandler = entryHandler

	// Mirror server console output to dev clients
	if deps.Dev != nil && deps.Dev.Console != nil {
		log.SetOutput(io.MultiWriter(logOutput, deps.Dev.Console))
	}

	return deps, nil
}

// serveFlags are the configuration overrides accepted by serve
func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Value: config.DefaultConfigFile,
			Usage: "optional TOML configuration file",
		},
		&cli.StringFlag{
			Name:  "root",
			Usage: "directory holding the built entry point and its assets",
		},
		&cli.StringFlag{
			Name:  "entry",
			Usage: "entry document, relative to the root",
		},
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "enable development mode (live reload and console passthrough)",
		},
	}
}

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the frontend entry point",
		Flags: serveFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			deps, err := buildServerDependencies(cfg, os.Stderr)
			if err != nil {
				return err
			}
			if deps.Dev != nil {
				defer deps.Dev.Close()
				log.Printf("Development mode enabled for %s (hmr=%t console=%t)", cfg.Frontend.Root, cfg.Dev.HMR, cfg.Dev.Console)
			}

			return internalcli.RunServe(deps, os.Stdout)
		},
	}
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	app := &cli.App{
		Name:           "frontend",
		Usage:          "Atom Node frontend development server",
		Version:        version,
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			ServeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Fatal(err)
	}
}

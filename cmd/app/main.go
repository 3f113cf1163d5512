package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/folio/internal"
	pkgconfig "github.com/starford/folio/pkg/config"
)

// loadOptions reads the config file named by --config. Client commands tolerate a missing file.
func loadOptions(cmd *cli.Command, optional bool) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if optional {
		load = pkgconfig.LoadOptional[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if url := cmd.String("server"); url != "" {
		cfg.Client.BaseURL = url
	}
	if token := cmd.String("token"); token != "" {
		cfg.Client.Token = token
	}

	return []internal.Option{
		internal.WithConfig(cfg),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd, false)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func printTree(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd, true)
	if err != nil {
		return err
	}
	return internal.PrintTree(ctx, opts...)
}

func move(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: folio move <note-id> <before:<id>|after:<id>|on:<id>|root>")
	}
	target, err := internal.ParseDropTarget(cmd.Args().Get(1))
	if err != nil {
		return err
	}
	opts, err := loadOptions(cmd, true)
	if err != nil {
		return err
	}
	return internal.MoveNote(ctx, cmd.Args().Get(0), target, opts...)
}

func edit(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: folio edit <note-id> <file.md>")
	}
	opts, err := loadOptions(cmd, true)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return internal.EditFile(ctx, cmd.Args().Get(0), cmd.Args().Get(1), opts...)
}

func docStatus(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd, true)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return internal.DocStatus(ctx, cmd.Bool("follow"), opts...)
}

func main() {
	clientFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Usage:   "Base URL of a running Folio server (overrides client.base_url)",
			Sources: cli.EnvVars("FOLIO_SERVER"),
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token (overrides client.token)",
			Sources: cli.EnvVars("FOLIO_TOKEN"),
		},
	}

	cmd := &cli.Command{
		Name:   "folio",
		Usage:  "Hierarchical Markdown notes with drag-and-drop ordering and a live documentation mirror",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the note tools over MCP stdio",
				Action: mcp,
			},
			{
				Name:   "tree",
				Usage:  "Print the note hierarchy of a running server",
				Flags:  clientFlags,
				Action: printTree,
			},
			{
				Name:      "move",
				Usage:     "Move a note relative to another note, or to the root level",
				ArgsUsage: "<note-id> <before:<id>|after:<id>|on:<id>|root>",
				Flags:     clientFlags,
				Action:    move,
			},
			{
				Name:      "edit",
				Usage:     "Mirror a local Markdown file into a note until interrupted",
				ArgsUsage: "<note-id> <file.md>",
				Flags:     clientFlags,
				Action:    edit,
			},
			{
				Name:  "docs-status",
				Usage: "Show documentation status badges",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "Keep polling"},
				}, clientFlags...),
				Action: docStatus,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/cli"
	"github.com/mrlokans/readstack/internal/config"
	"github.com/mrlokans/readstack/internal/entrypoint"
	"github.com/mrlokans/readstack/internal/logging"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is implemented by every CLI subcommand.
type command interface {
	ParseFlags(args []string) error
	Run(ctx context.Context) error
}

func main() {
	cfg := config.NewConfig()

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		if err := entrypoint.Run(cfg, logger, Version); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch command {
	case "search":
		cmd = cli.NewSearchCommand(cfg.Catalog)
	case "genres":
		cmd = cli.NewGenresCommand(cfg.Catalog, logger)
	case "stats":
		cmd = cli.NewStatsCommand(cfg.Database.Path, logger)
	case "version", "-v", "--version":
		fmt.Printf("readstack %s (commit: %s)\n", Version, Commit)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("readstack - reading tracker backed by the OpenLibrary catalog")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [command] [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the HTTP server (default)")
	fmt.Println("  search    Search the catalog")
	fmt.Println("  genres    Fetch the genre overview")
	fmt.Println("  stats     Print reading statistics")
	fmt.Println("  version   Show version information")
	fmt.Println("  help      Show this help message")
	fmt.Println()
	fmt.Println("Run '<command> -h' for command-specific help.")
}

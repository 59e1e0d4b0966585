package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/analytics"
	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/database/books"
	"github.com/mrlokans/readstack/internal/database/quotes"
	"github.com/mrlokans/readstack/internal/database/sessions"
)

// StatsCommand prints the reading summary of a local database.
type StatsCommand struct {
	DatabasePath string

	Out    io.Writer
	logger *zap.Logger
}

func NewStatsCommand(defaultDBPath string, logger *zap.Logger) *StatsCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsCommand{DatabasePath: defaultDBPath, Out: os.Stdout, logger: logger}
}

// ParseFlags parses command line flags
func (cmd *StatsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.StringVar(&cmd.DatabasePath, "db", cmd.DatabasePath, "Path to the reading database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s stats [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print reading statistics for the current month and overall.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the stats command
func (cmd *StatsCommand) Run(ctx context.Context) error {
	if _, err := os.Stat(cmd.DatabasePath); err != nil {
		return fmt.Errorf("database %s: %w", cmd.DatabasePath, err)
	}

	db, err := database.NewDatabase(cmd.DatabasePath, cmd.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := analytics.NewService(db, books.NewRepository(db), quotes.NewRepository(db), sessions.NewRepository(db))
	summary, err := svc.Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	fmt.Fprintf(cmd.Out, "This month\n")
	fmt.Fprintf(cmd.Out, "  Pages read:          %d\n", summary.PagesReadThisMonth)
	fmt.Fprintf(cmd.Out, "  Books finished:      %d\n", len(summary.BooksFinishedThisMonth))
	fmt.Fprintf(cmd.Out, "  Finished pages:      %d\n", summary.FinishedPagesThisMonth)
	fmt.Fprintf(cmd.Out, "  Session pages:       %d\n", summary.SessionPagesThisMonth)
	for _, b := range summary.BooksFinishedThisMonth {
		fmt.Fprintf(cmd.Out, "    - %s\n", b.Title)
	}
	fmt.Fprintf(cmd.Out, "Overall\n")
	fmt.Fprintf(cmd.Out, "  Pages read:          %d\n", summary.TotalPagesRead)
	fmt.Fprintf(cmd.Out, "  Books finished:      %d\n", summary.TotalBooksFinished)
	fmt.Fprintf(cmd.Out, "  Finished pages:      %d\n", summary.FinishedPagesTotal)
	fmt.Fprintf(cmd.Out, "  Quotes:              %d\n", summary.QuotesCount)
	return nil
}

package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/browse"
	"github.com/mrlokans/readstack/internal/config"
	"github.com/mrlokans/readstack/internal/openlibrary"
)

// GenresCommand fetches the genre overview and prints the works per genre.
type GenresCommand struct {
	Verbose bool

	Out     io.Writer
	logger  *zap.Logger
	catalog config.Catalog
	lister  browse.SubjectLister
}

func NewGenresCommand(cfg config.Catalog, logger *zap.Logger) *GenresCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenresCommand{Out: os.Stdout, logger: logger, catalog: cfg}
}

// ParseFlags parses command line flags
func (cmd *GenresCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("genres", flag.ContinueOnError)
	fs.BoolVar(&cmd.Verbose, "verbose", false, "List every work, not just the count")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s genres [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Fetch up to %d works for each of the %d browse genres.\n\n", browse.GenreLimit, len(browse.Genres))
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the fan-out
func (cmd *GenresCommand) Run(ctx context.Context) error {
	lister := cmd.lister
	if lister == nil {
		lister = openlibrary.NewClient(cmd.catalog)
	}

	genres := browse.NewGenreFetcher(lister, cmd.logger).Fetch(ctx)
	if len(genres) == 0 {
		return fmt.Errorf("no genre returned any works")
	}

	for _, genre := range browse.Genres {
		works, ok := genres[genre]
		if !ok {
			continue
		}
		fmt.Fprintf(cmd.Out, "%-20s %d works\n", genre, len(works))
		if !cmd.Verbose {
			continue
		}
		for _, w := range works {
			fmt.Fprintf(cmd.Out, "  %-16s %s\n", openlibrary.WorkID(w.Key), w.Title)
		}
	}
	fmt.Fprintf(cmd.Out, "%d of %d genres available\n", len(genres), len(browse.Genres))
	return nil
}

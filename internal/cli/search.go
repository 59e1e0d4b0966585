package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrlokans/readstack/internal/config"
	"github.com/mrlokans/readstack/internal/openlibrary"
)

// SearchCommand searches the catalog and prints one line per work.
type SearchCommand struct {
	Query string
	Limit int

	Out     io.Writer
	catalog config.Catalog
}

func NewSearchCommand(cfg config.Catalog) *SearchCommand {
	return &SearchCommand{Out: os.Stdout, catalog: cfg}
}

// ParseFlags parses command line flags
func (cmd *SearchCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.IntVar(&cmd.Limit, "limit", 10, "Maximum number of results")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s search [options] <query>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Search the OpenLibrary catalog.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s search dune\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s search -limit 3 the left hand of darkness\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.Query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if cmd.Query == "" {
		return fmt.Errorf("search query is required")
	}
	if cmd.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}

// Run executes the search
func (cmd *SearchCommand) Run(ctx context.Context) error {
	resp, err := openlibrary.NewClient(cmd.catalog).Search(ctx, cmd.Query, cmd.Limit)
	if err != nil {
		return fmt.Errorf("search failed: %s", openlibrary.UserMessage(err))
	}

	fmt.Fprintf(cmd.Out, "%d results for %q\n", resp.NumFound, cmd.Query)
	for _, doc := range resp.Docs {
		line := fmt.Sprintf("%-16s %s", openlibrary.WorkID(doc.Key), doc.Title)
		if len(doc.AuthorName) > 0 {
			line += " by " + strings.Join(doc.AuthorName, ", ")
		}
		fmt.Fprintln(cmd.Out, line)
	}
	return nil
}

// Command seed_catalog loads a small demonstration catalog (and optionally a
// few borrowers) into a circulation database.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/config"
	"library-circulation/internal/tablefmt"
	"library-circulation/library"
	"library-circulation/logging"
)

type seedBook struct {
	isbn    string
	title   string
	authors []string
}

var catalog = []seedBook{
	{"9780141439518", "Pride and Prejudice", []string{"Jane Austen"}},
	{"9780141439587", "Emma", []string{"Jane Austen"}},
	{"9780553213119", "Dracula", []string{"Bram Stoker"}},
	{"9780061120084", "To Kill a Mockingbird", []string{"Harper Lee"}},
	{"9780451524935", "1984", []string{"George Orwell"}},
	{"9780452284241", "Animal Farm", []string{"George Orwell"}},
	{"9780547928227", "The Hobbit", []string{"J.R.R. Tolkien"}},
	{"9780060853983", "Good Omens", []string{"Terry Pratchett", "Neil Gaiman"}},
	{"9780743273565", "The Great Gatsby", []string{"F. Scott Fitzgerald"}},
	{"9780140449266", "The Count of Monte Cristo", []string{"Alexandre Dumas", "Auguste Maquet"}},
}

var borrowers = []library.BorrowerInput{
	{SSN: "111-11-1111", Name: "Alice Moreno", Address: "12 Elm St, Springfield", Phone: "555-0101"},
	{SSN: "222-22-2222", Name: "Bob Okafor", Address: "4 Birch Ave, Springfield"},
	{SSN: "333-33-3333", Name: "Carol Lindqvist", Address: "90 Lake Rd, Shelbyville", Phone: "555-0199"},
}

func main() {
	var (
		dbPath        string
		reset         bool
		withBorrowers bool
	)
	cmd := &cobra.Command{
		Use:          "seed_catalog",
		Short:        "Load a demonstration catalog into the circulation database",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.DefaultEnvFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DatabasePath = dbPath
			}
			log, err := logging.NewZapLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer log.Sync()

			if reset {
				removeDatabase(cfg.DatabasePath)
			}
			return seed(cmd.Context(), cfg.DatabasePath, withBorrowers, log)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides "+config.EnvDatabasePath+")")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing database files first")
	cmd.Flags().BoolVar(&withBorrowers, "borrowers", false, "also register demonstration borrowers")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func removeDatabase(path string) {
	fmt.Println("Cleaning up existing database files...")
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
}

func seed(ctx context.Context, path string, withBorrowers bool, log logging.Logger) error {
	manager, err := library.NewLibraryManager(path, library.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer manager.Close()

	// Reuse authors already present so reseeding does not duplicate them.
	authorIDs := map[string]int64{}
	existing, err := manager.ListAllAuthors(ctx)
	if err != nil {
		return err
	}
	for _, au := range existing {
		if _, ok := authorIDs[au.Name]; !ok {
			authorIDs[au.Name] = au.ID
		}
	}

	successCount, errorCount := 0, 0
	for _, b := range catalog {
		fmt.Printf("Importing: %s by %s... ", b.title, strings.Join(b.authors, ", "))
		ids := make([]int64, 0, len(b.authors))
		for _, name := range b.authors {
			id, ok := authorIDs[name]
			if !ok {
				if id, err = manager.AddAuthor(ctx, name); err != nil {
					return err
				}
				authorIDs[name] = id
			}
			ids = append(ids, id)
		}
		if err := manager.AddBook(ctx, b.isbn, b.title, ids...); err != nil {
			log.Warn(ctx, "skip book", "isbn", b.isbn, "error", err)
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("SUCCESS")
		successCount++
	}

	if withBorrowers {
		for _, in := range borrowers {
			res, err := manager.RegisterBorrower(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("Borrower %s: %s\n", in.Name, res.Message)
		}
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	books, err := manager.ListAllBooks(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%-14s %-40s %-30s\n", "ISBN", "Title", "Authors")
	fmt.Println(strings.Repeat("-", 86))
	for _, b := range books {
		fmt.Printf("%-14s %-40s %-30s\n", b.ISBN, tablefmt.Truncate(b.Title, 40), tablefmt.Truncate(b.Authors, 30))
	}
	return nil
}

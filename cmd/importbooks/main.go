// The importbooks command seeds a library storage file from a JSON
// array of book records, reporting a per-book result and a summary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"libris/internal/books"
	"libris/internal/db/jsondb"
	"libris/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	var (
		inputFile   string
		storageFile string
	)

	rootCmd := &cobra.Command{
		Use:   "importbooks",
		Short: "Bulk-import book records into a library storage file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return importBooks(cmd.Context(), inputFile, storageFile)
		},
	}

	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "books.json", "JSON file with an array of books to import")
	rootCmd.Flags().StringVarP(&storageFile, "file-storage", "f", "library.json", "library storage file to import into")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func importBooks(ctx context.Context, inputFile, storageFile string) error {
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	var toImport []models.Book
	if err := json.Unmarshal(data, &toImport); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}

	db, err := jsondb.New(storageFile)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer db.Close()

	registry := books.New(db)

	successCount := 0
	errorCount := 0

	for _, book := range toImport {
		fmt.Printf("Importing: %s by %s... ", book.Title, book.Author)

		if _, err := registry.Add(ctx, book); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}

		fmt.Printf("SUCCESS (ISBN: %s)\n", book.ISBN)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		all, err := registry.List(ctx)
		if err != nil {
			return fmt.Errorf("retrieving books: %w", err)
		}

		fmt.Println("\nImported books:")
		fmt.Printf("%-16s %-40s %-30s\n", "ISBN", "Title", "Author")
		fmt.Println(strings.Repeat("-", 88))
		for _, book := range all {
			fmt.Printf("%-16s %-40s %-30s\n", book.ISBN, truncateString(book.Title, 40), truncateString(book.Author, 30))
		}
	}

	return nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen-3] + "..."
}

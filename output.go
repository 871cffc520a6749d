package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-circulation/internal/tablefmt"
	"library-circulation/library"
)

// wantJSON reports whether results go out as JSON: always with --json, and
// whenever stdout is not an interactive terminal.
func (a *app) wantJSON(w io.Writer) bool {
	if a.jsonOut {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func (a *app) render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if a.wantJSON(w) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// renderOutcome prints a mutating result and turns a rejection into errRejected.
func (a *app) renderOutcome(cmd *cobra.Command, o library.Outcome, v any, text func(w io.Writer)) error {
	err := a.render(cmd, v, func(w io.Writer) {
		if !o.Success {
			fmt.Fprintf(w, "Rejected (%s): %s\n", o.Code, o.Message)
			return
		}
		text(w)
	})
	if err != nil {
		return err
	}
	if !o.Success {
		return errRejected
	}
	return nil
}

func printBooks(w io.Writer, books []library.BookRow) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	fmt.Fprintf(w, "%-14s %-40s %-30s %s\n", "ISBN", "Title", "Authors", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 92))
	for _, b := range books {
		fmt.Fprintf(w, "%-14s %-40s %-30s %s\n",
			b.ISBN,
			tablefmt.Truncate(b.Title, 40),
			tablefmt.Truncate(b.Authors, 30),
			b.Status)
	}
}

func printLoans(w io.Writer, loans []library.ActiveLoan) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No active loans.")
		return
	}
	fmt.Fprintf(w, "%-7s %-14s %-30s %-9s %-20s %-10s %s\n", "Loan", "ISBN", "Title", "Card", "Borrower", "Out", "Due")
	fmt.Fprintln(w, strings.Repeat("-", 106))
	for _, l := range loans {
		fmt.Fprintf(w, "%-7d %-14s %-30s %-9s %-20s %-10s %s\n",
			l.LoanID,
			l.ISBN,
			tablefmt.Truncate(l.Title, 30),
			library.FormatCardID(l.CardID),
			tablefmt.Truncate(l.BorrowerName, 20),
			l.DateOut,
			l.DueDate)
	}
}

func printAuthors(w io.Writer, authors []library.Author) {
	if len(authors) == 0 {
		fmt.Fprintln(w, "No authors in catalog.")
		return
	}
	fmt.Fprintf(w, "%-6s %s\n", "ID", "Name")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, au := range authors {
		fmt.Fprintf(w, "%-6d %s\n", au.ID, au.Name)
	}
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

// ------------------ Catalog ------------------

func newSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search books by ISBN, title or author (case-insensitive substring)",
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.mgr.SearchBooks(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return a.internal(cmd, "search", err)
			}
			return a.render(cmd, books, func(w io.Writer) { printBooks(w, books) })
		},
	}
}

func newBooksCommand(a *app) *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List the catalog, optionally only books by one author",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				books []library.BookRow
				err   error
			)
			if cmd.Flags().Changed("author") {
				books, err = a.mgr.BooksByAuthor(cmd.Context(), author)
			} else {
				books, err = a.mgr.ListAllBooks(cmd.Context())
			}
			if err != nil {
				return a.internal(cmd, "list books", err)
			}
			return a.render(cmd, books, func(w io.Writer) { printBooks(w, books) })
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "only books whose author name contains this text")
	return cmd
}

func newAuthorsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "authors",
		Short: "List authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			authors, err := a.mgr.ListAllAuthors(cmd.Context())
			if err != nil {
				return a.internal(cmd, "list authors", err)
			}
			return a.render(cmd, authors, func(w io.Writer) { printAuthors(w, authors) })
		},
	}
}

func newAvailableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available <isbn>",
		Short: "Report whether a book has no outstanding loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.mgr.IsBookAvailable(cmd.Context(), args[0])
			if err != nil {
				return a.internal(cmd, "availability", err)
			}
			v := struct {
				ISBN      string `json:"isbn"`
				Available bool   `json:"available"`
			}{args[0], ok}
			return a.render(cmd, v, func(w io.Writer) {
				if ok {
					fmt.Fprintf(w, "%s is available\n", args[0])
				} else {
					fmt.Fprintf(w, "%s is checked out\n", args[0])
				}
			})
		},
	}
}

// ------------------ Circulation ------------------

func newCheckoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <isbn> <card-id>",
		Short: "Lend a book to a borrower for 14 days",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.mgr.Checkout(cmd.Context(), args[0], args[1])
			if err != nil {
				return a.internal(cmd, "checkout", err)
			}
			return a.renderOutcome(cmd, res.Outcome, res, func(w io.Writer) {
				fmt.Fprintf(w, "%s (loan %d)\n", res.Message, res.LoanID)
			})
		},
	}
}

func newCheckinCommand(a *app) *cobra.Command {
	var req library.CheckinRequest
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Return a book by loan id, or by card id and ISBN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.Checkin(cmd.Context(), req)
			if err != nil {
				return a.internal(cmd, "checkin", err)
			}
			return a.renderOutcome(cmd, res.Outcome, res, func(w io.Writer) {
				fmt.Fprintf(w, "%s (loan %d)\n", res.Message, res.LoanID)
			})
		},
	}
	cmd.Flags().Int64Var(&req.LoanID, "loan-id", 0, "loan to close")
	cmd.Flags().StringVar(&req.CardID, "card", "", "borrower card id (with --isbn)")
	cmd.Flags().StringVar(&req.ISBN, "isbn", "", "book ISBN (with --card)")
	return cmd
}

func newLoansCommand(a *app) *cobra.Command {
	var f library.LoanFilter
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Find active loans matching any of the given filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loans, err := a.mgr.FindActiveLoans(cmd.Context(), f)
			if err != nil {
				return a.internal(cmd, "find loans", err)
			}
			return a.render(cmd, loans, func(w io.Writer) { printLoans(w, loans) })
		},
	}
	cmd.Flags().StringVar(&f.ISBN, "isbn", "", "exact ISBN")
	cmd.Flags().StringVar(&f.CardID, "card", "", "exact card id")
	cmd.Flags().StringVar(&f.Name, "name", "", "borrower name substring")
	return cmd
}

// ------------------ Borrowers ------------------

func newRegisterCommand(a *app) *cobra.Command {
	var in library.BorrowerInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a borrower and issue a library card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.RegisterBorrower(cmd.Context(), in)
			if err != nil {
				return a.internal(cmd, "register", err)
			}
			return a.renderOutcome(cmd, res.Outcome, res, func(w io.Writer) {
				fmt.Fprintln(w, res.Message)
			})
		},
	}
	cmd.Flags().StringVar(&in.SSN, "ssn", "", "social security number (one card per SSN)")
	cmd.Flags().StringVar(&in.Name, "name", "", "full name")
	cmd.Flags().StringVar(&in.Address, "address", "", "postal address")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	return cmd
}

func newBorrowerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrower <card-id>",
		Short: "Show a borrower's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.mgr.GetBorrower(cmd.Context(), args[0])
			if err != nil {
				return a.internal(cmd, "get borrower", err)
			}
			return a.renderOutcome(cmd, res.Outcome, res, func(w io.Writer) {
				b := res.Borrower
				fmt.Fprintf(w, "Card:    %s\n", library.FormatCardID(b.CardID))
				fmt.Fprintf(w, "Name:    %s\n", b.Name)
				fmt.Fprintf(w, "Address: %s\n", b.Address)
				if b.Phone != "" {
					fmt.Fprintf(w, "Phone:   %s\n", b.Phone)
				}
			})
		},
	}
}

// ------------------ Fines ------------------

func newFinesCommand(a *app) *cobra.Command {
	fines := &cobra.Command{
		Use:   "fines",
		Short: "Refresh, show and pay overdue fines",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute fines for all overdue loans as of today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.RefreshFines(cmd.Context())
			if err != nil {
				return a.internal(cmd, "refresh fines", err)
			}
			return a.render(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "New fines on returned loans:    %d\n", res.InsertedReturned)
				fmt.Fprintf(w, "New fines on outstanding loans: %d\n", res.InsertedUnreturned)
				fmt.Fprintf(w, "Fines updated:                  %d\n", res.Updated)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <card-id>",
		Short: "Show a borrower's total unpaid fines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.mgr.GetBorrowerFines(cmd.Context(), args[0])
			if err != nil {
				return a.internal(cmd, "show fines", err)
			}
			return a.renderOutcome(cmd, res.Outcome, res, func(w io.Writer) {
				fmt.Fprintf(w, "%s owes $%.2f\n", library.FormatCardID(res.CardID), res.TotalFine)
			})
		},
	}

	pay := &cobra.Command{
		Use:   "pay <card-id>",
		Short: "Mark all of a borrower's unpaid fines as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.mgr.PayFines(cmd.Context(), args[0])
			if err != nil {
				return a.internal(cmd, "pay fines", err)
			}
			return a.renderOutcome(cmd, res.Outcome, res, func(w io.Writer) {
				fmt.Fprintln(w, res.Message)
			})
		},
	}

	fines.AddCommand(refresh, show, pay)
	return fines
}

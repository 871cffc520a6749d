package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// Checkout lends isbn to the borrower identified by rawCardID.
//
// Checks run in this order and stop at the first failure:
// missing fields, card format, borrower exists, book exists, loan cap,
// unpaid fines, book availability. All checks and the insert share one
// transaction so two concurrent checkouts of the same book cannot both pass.
func (d *Database) Checkout(ctx context.Context, isbn, rawCardID string, today time.Time) (LoanResult, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" || strings.TrimSpace(rawCardID) == "" {
		return LoanResult{Outcome: rejected(CodeMissingFields, msgMissingCheckout)}, nil
	}
	cardID, err := NormalizeCardID(rawCardID)
	if err != nil {
		return LoanResult{Outcome: rejected(CodeInvalidCard, msgInvalidCard)}, nil
	}

	var res LoanResult
	err = d.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM borrowers WHERE card_id=?)`, cardID); err != nil {
			return fmt.Errorf("lookup borrower: %w", err)
		}
		if !exists {
			res.Outcome = rejected(CodeBorrowerNotFound, msgNoBorrower)
			return nil
		}

		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM books WHERE isbn=?)`, isbn); err != nil {
			return fmt.Errorf("lookup book: %w", err)
		}
		if !exists {
			res.Outcome = rejected(CodeBookNotFound, msgNoBook)
			return nil
		}

		var active int
		if err := tx.GetContext(ctx, &active, `SELECT COUNT(*) FROM loans WHERE card_id=? AND date_in IS NULL`, cardID); err != nil {
			return fmt.Errorf("count active loans: %w", err)
		}
		if active >= maxActiveLoans {
			res.Outcome = rejected(CodeLoanLimitExceeded, msgLoanLimit)
			return nil
		}

		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(
			SELECT 1 FROM fines f JOIN loans l ON l.loan_id = f.loan_id
			WHERE l.card_id=? AND f.paid=0)`, cardID); err != nil {
			return fmt.Errorf("check unpaid fines: %w", err)
		}
		if exists {
			res.Outcome = rejected(CodeUnpaidFines, msgUnpaidFines)
			return nil
		}

		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM loans WHERE isbn=? AND date_in IS NULL)`, isbn); err != nil {
			return fmt.Errorf("check book loans: %w", err)
		}
		if exists {
			res.Outcome = rejected(CodeBookUnavailable, msgBookOut)
			return nil
		}

		due := today.AddDate(0, 0, loanPeriodDays)
		r, err := tx.ExecContext(ctx, `INSERT INTO loans(isbn,card_id,date_out,due_date) VALUES(?,?,?,?)`,
			isbn, cardID, formatDate(today), formatDate(due))
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		if res.LoanID, err = r.LastInsertId(); err != nil {
			return fmt.Errorf("loan id: %w", err)
		}
		res.Outcome = succeeded(fmt.Sprintf("Book checked out; due %s", formatDate(due)))
		return nil
	})
	if err != nil {
		return LoanResult{}, err
	}
	return res, nil
}

// Checkin closes an outstanding loan, addressed by loan id or by the
// (card, isbn) pair.
func (d *Database) Checkin(ctx context.Context, req CheckinRequest, today time.Time) (LoanResult, error) {
	if req.LoanID != 0 {
		return d.closeLoan(ctx, req.LoanID, today, CodeLoanNotActive, msgLoanNotActive)
	}

	isbn := strings.TrimSpace(req.ISBN)
	if isbn == "" || strings.TrimSpace(req.CardID) == "" {
		return LoanResult{Outcome: rejected(CodeMissingFields, msgMissingCheckin)}, nil
	}
	cardID, err := NormalizeCardID(req.CardID)
	if err != nil {
		return LoanResult{Outcome: rejected(CodeInvalidCard, msgInvalidCard)}, nil
	}

	var res LoanResult
	err = d.withTx(ctx, func(tx *sqlx.Tx) error {
		var loanID int64
		err := tx.GetContext(ctx, &loanID,
			`SELECT loan_id FROM loans WHERE card_id=? AND isbn=? AND date_in IS NULL`, cardID, isbn)
		if errors.Is(err, sql.ErrNoRows) {
			res.Outcome = rejected(CodeLoanNotFound, msgLoanNotFound)
			return nil
		}
		if err != nil {
			return fmt.Errorf("find active loan: %w", err)
		}
		res, err = markReturned(ctx, tx, loanID, today, CodeLoanNotFound, msgLoanNotFound)
		return err
	})
	if err != nil {
		return LoanResult{}, err
	}
	return res, nil
}

func (d *Database) closeLoan(ctx context.Context, loanID int64, today time.Time, code Code, msg string) (LoanResult, error) {
	var res LoanResult
	err := d.withTx(ctx, func(tx *sqlx.Tx) (err error) {
		res, err = markReturned(ctx, tx, loanID, today, code, msg)
		return err
	})
	if err != nil {
		return LoanResult{}, err
	}
	return res, nil
}

// markReturned sets date_in on loanID if it is still outstanding. Zero rows
// affected is reported with the caller's code.
func markReturned(ctx context.Context, tx *sqlx.Tx, loanID int64, today time.Time, code Code, msg string) (LoanResult, error) {
	r, err := tx.ExecContext(ctx, `UPDATE loans SET date_in=? WHERE loan_id=? AND date_in IS NULL`,
		formatDate(today), loanID)
	if err != nil {
		return LoanResult{}, fmt.Errorf("update loan: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return LoanResult{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return LoanResult{Outcome: rejected(code, msg)}, nil
	}
	return LoanResult{Outcome: succeeded("Book checked in"), LoanID: loanID}, nil
}

// activeLoanQuery builds the OR-filtered lookup. It reports false when no
// usable filter was supplied.
func activeLoanQuery(f LoanFilter) (string, []any, bool, error) {
	var filters []exp.Expression
	if isbn := strings.TrimSpace(f.ISBN); isbn != "" {
		filters = append(filters, goqu.I("l.isbn").Eq(isbn))
	}
	if strings.TrimSpace(f.CardID) != "" {
		if cardID, err := NormalizeCardID(f.CardID); err == nil {
			filters = append(filters, goqu.I("l.card_id").Eq(cardID))
		}
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		filters = append(filters, likeExpr(`"br"."name"`, likePattern(name)))
	}
	if len(filters) == 0 {
		return "", nil, false, nil
	}

	ds := goqu.Dialect(dialectSQLite).
		From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.isbn").Eq(goqu.I("l.isbn")))).
		Join(goqu.T("borrowers").As("br"), goqu.On(goqu.I("br.card_id").Eq(goqu.I("l.card_id")))).
		Select(
			goqu.I("l.loan_id"),
			goqu.I("l.isbn"),
			goqu.I("b.title"),
			goqu.I("l.card_id"),
			goqu.I("br.name").As("borrower_name"),
			goqu.I("l.date_out"),
			goqu.I("l.due_date"),
		).
		Where(goqu.I("l.date_in").IsNull(), goqu.Or(filters...)).
		Order(goqu.I("l.due_date").Asc(), goqu.I("l.loan_id").Asc()).
		Prepared(true)

	query, args, err := ds.ToSQL()
	return query, args, true, err
}

// FindActiveLoans returns outstanding loans matching any of the supplied
// filters. An empty filter (or one whose only field is an unparseable card)
// returns no rows.
func (d *Database) FindActiveLoans(ctx context.Context, f LoanFilter) ([]ActiveLoan, error) {
	loans := make([]ActiveLoan, 0)
	query, args, ok, err := activeLoanQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build loan query: %w", err)
	}
	if !ok {
		return loans, nil
	}
	if err := d.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("query active loans: %w", err)
	}
	return loans, nil
}

// RegisterBorrower creates a borrower with the next card id (max + 1,
// starting at 1). The ssn check, id assignment and insert share a transaction.
func (d *Database) RegisterBorrower(ctx context.Context, in BorrowerInput) (RegistrationResult, error) {
	in.SSN = strings.TrimSpace(in.SSN)
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.SSN == "" || in.Name == "" || in.Address == "" {
		return RegistrationResult{Outcome: rejected(CodeMissingFields, msgMissingBorrower)}, nil
	}

	var res RegistrationResult
	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM borrowers WHERE ssn=?)`, in.SSN); err != nil {
			return fmt.Errorf("check ssn: %w", err)
		}
		if exists {
			res.Outcome = rejected(CodeDuplicateSSN, msgDuplicateSSN)
			return nil
		}

		var next int64
		if err := tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(card_id), 0) + 1 FROM borrowers`); err != nil {
			return fmt.Errorf("next card id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO borrowers(card_id,ssn,name,address,phone) VALUES(?,?,?,?,?)`,
			next, in.SSN, in.Name, in.Address, in.Phone); err != nil {
			return fmt.Errorf("insert borrower: %w", err)
		}
		res.CardID = next
		res.Outcome = succeeded(fmt.Sprintf("Borrower created with card ID %s", FormatCardID(next)))
		return nil
	})
	if err != nil {
		return RegistrationResult{}, err
	}
	return res, nil
}

// GetBorrower fetches a borrower by card.
func (d *Database) GetBorrower(ctx context.Context, rawCardID string) (BorrowerResult, error) {
	cardID, err := NormalizeCardID(rawCardID)
	if err != nil {
		return BorrowerResult{Outcome: rejected(CodeInvalidCard, msgInvalidCard)}, nil
	}
	var b Borrower
	err = d.db.GetContext(ctx, &b, `SELECT card_id,ssn,name,address,phone FROM borrowers WHERE card_id=?`, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return BorrowerResult{Outcome: rejected(CodeBorrowerNotFound, msgNoBorrower)}, nil
	}
	if err != nil {
		return BorrowerResult{}, fmt.Errorf("get borrower: %w", err)
	}
	return BorrowerResult{Outcome: succeeded("Borrower found"), Borrower: &b}, nil
}

package library

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	// Returned late and not yet fined: fine against date_in.
	insertReturnedFinesSQL = `
INSERT INTO fines(loan_id, fine_amt, paid)
SELECT l.loan_id, ROUND((julianday(l.date_in) - julianday(l.due_date)) * ?, 2), 0
FROM loans l
WHERE l.date_in IS NOT NULL
  AND l.date_in > l.due_date
  AND NOT EXISTS (SELECT 1 FROM fines f WHERE f.loan_id = l.loan_id)
ON CONFLICT(loan_id) DO NOTHING`

	// Still out past due and not yet fined: fine against today.
	insertOutstandingFinesSQL = `
INSERT INTO fines(loan_id, fine_amt, paid)
SELECT l.loan_id, ROUND((julianday(?) - julianday(l.due_date)) * ?, 2), 0
FROM loans l
WHERE l.date_in IS NULL
  AND l.due_date < ?
  AND NOT EXISTS (SELECT 1 FROM fines f WHERE f.loan_id = l.loan_id)
ON CONFLICT(loan_id) DO NOTHING`

	// Recompute unpaid fines; only rows whose amount changes are touched.
	recomputeUnpaidFinesSQL = `
UPDATE fines SET fine_amt = calc.amt
FROM (
  SELECT l.loan_id AS loan_id,
         ROUND(MAX(0, julianday(COALESCE(l.date_in, ?)) - julianday(l.due_date)) * ?, 2) AS amt
  FROM loans l
) AS calc
WHERE fines.loan_id = calc.loan_id
  AND fines.paid = 0
  AND fines.fine_amt <> calc.amt`
)

// RefreshFines runs the three accrual phases in one transaction: fine
// late-returned loans, fine overdue outstanding loans, then recompute every
// unpaid fine. Running it again without state changes touches nothing.
func (d *Database) RefreshFines(ctx context.Context, today time.Time) (FineRefresh, error) {
	var out FineRefresh
	day := formatDate(today)

	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		phases := []struct {
			name  string
			query string
			args  []any
			dst   *int64
		}{
			{"insert returned", insertReturnedFinesSQL, []any{finePerDay}, &out.InsertedReturned},
			{"insert outstanding", insertOutstandingFinesSQL, []any{day, finePerDay, day}, &out.InsertedUnreturned},
			{"recompute unpaid", recomputeUnpaidFinesSQL, []any{day, finePerDay}, &out.Updated},
		}
		for _, p := range phases {
			r, err := tx.ExecContext(ctx, p.query, p.args...)
			if err != nil {
				return fmt.Errorf("%s fines: %w", p.name, err)
			}
			if *p.dst, err = r.RowsAffected(); err != nil {
				return fmt.Errorf("%s fines: rows affected: %w", p.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return FineRefresh{}, err
	}
	return out, nil
}

// GetBorrowerFines sums the borrower's unpaid fines. A borrower without
// fines, or an unknown card, totals 0.
func (d *Database) GetBorrowerFines(ctx context.Context, rawCardID string) (FinesSummary, error) {
	cardID, err := NormalizeCardID(rawCardID)
	if err != nil {
		return FinesSummary{Outcome: rejected(CodeInvalidCard, msgInvalidCard)}, nil
	}
	var total float64
	err = d.db.GetContext(ctx, &total, `
SELECT COALESCE(SUM(f.fine_amt), 0)
FROM fines f JOIN loans l ON l.loan_id = f.loan_id
WHERE l.card_id = ? AND f.paid = 0`, cardID)
	if err != nil {
		return FinesSummary{}, fmt.Errorf("sum fines: %w", err)
	}
	return FinesSummary{
		Outcome:   succeeded(fmt.Sprintf("Unpaid fines: %.2f", roundCents(total))),
		CardID:    cardID,
		TotalFine: roundCents(total),
	}, nil
}

// PayFines marks every unpaid fine of the borrower as paid in one statement.
// Changed is 0 when nothing was owed.
func (d *Database) PayFines(ctx context.Context, rawCardID string) (PaymentResult, error) {
	cardID, err := NormalizeCardID(rawCardID)
	if err != nil {
		return PaymentResult{Outcome: rejected(CodeInvalidCard, msgInvalidCard)}, nil
	}
	r, err := d.db.ExecContext(ctx, `
UPDATE fines SET paid = 1
WHERE paid = 0 AND loan_id IN (SELECT loan_id FROM loans WHERE card_id = ?)`, cardID)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("pay fines: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return PaymentResult{}, fmt.Errorf("pay fines: rows affected: %w", err)
	}
	msg := "No unpaid fines"
	if n > 0 {
		msg = fmt.Sprintf("Paid %d fine(s)", n)
	}
	return PaymentResult{Outcome: succeeded(msg), Changed: n}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

package library

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fineFor(t *testing.T, db *Database, loanID int64) (amt float64, paid bool) {
	t.Helper()
	row := db.db.QueryRowxContext(context.Background(), `SELECT fine_amt, paid FROM fines WHERE loan_id=?`, loanID)
	require.NoError(t, row.Scan(&amt, &paid))
	return amt, paid
}

func TestRefreshFines_ReturnedTenDaysLate(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	seedBook(t, db, prideISBN, "Pride and Prejudice", "Jane Austen")
	card := seedBorrower(t, db, "111-11-1111", "Alice")

	// Out 2023-12-18, due 2024-01-01, back 2024-01-11.
	out, err := db.Checkout(ctx, prideISBN, card, day(2023, 12, 18))
	require.NoError(t, err)
	_, err = db.Checkin(ctx, CheckinRequest{LoanID: out.LoanID}, day(2024, 1, 11))
	require.NoError(t, err)

	res, err := db.RefreshFines(ctx, day(2024, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{InsertedReturned: 1}, res)

	amt, paid := fineFor(t, db, out.LoanID)
	assert.Equal(t, 2.50, amt)
	assert.False(t, paid)
}

func TestRefreshFines_OnTimeReturnIsNotFined(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	seedBook(t, db, prideISBN, "Pride and Prejudice", "Jane Austen")
	card := seedBorrower(t, db, "111-11-1111", "Alice")

	out, err := db.Checkout(ctx, prideISBN, card, day(2024, 1, 1))
	require.NoError(t, err)
	_, err = db.Checkin(ctx, CheckinRequest{LoanID: out.LoanID}, day(2024, 1, 15))
	require.NoError(t, err)

	res, err := db.RefreshFines(ctx, day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{}, res)
}

func TestRefreshFines_IdempotentAndMonotonic(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	seedBook(t, db, prideISBN, "Pride and Prejudice", "Jane Austen")
	card := seedBorrower(t, db, "111-11-1111", "Alice")

	out, err := db.Checkout(ctx, prideISBN, card, day(2023, 12, 18)) // due 2024-01-01
	require.NoError(t, err)

	// Not yet due: nothing to do.
	res, err := db.RefreshFines(ctx, day(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{}, res)

	res, err = db.RefreshFines(ctx, day(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{InsertedUnreturned: 1}, res)
	amt, _ := fineFor(t, db, out.LoanID)
	assert.Equal(t, 1.00, amt)

	// Same day again: no inserts, no updates.
	res, err = db.RefreshFines(ctx, day(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{}, res)

	res, err = db.RefreshFines(ctx, day(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{Updated: 1}, res)
	later, _ := fineFor(t, db, out.LoanID)
	assert.Equal(t, 1.75, later)
	assert.GreaterOrEqual(t, later, amt)

	// Returned: the next refresh fixes the final amount, then it freezes.
	_, err = db.Checkin(ctx, CheckinRequest{LoanID: out.LoanID}, day(2024, 1, 11))
	require.NoError(t, err)
	res, err = db.RefreshFines(ctx, day(2024, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{Updated: 1}, res)

	res, err = db.RefreshFines(ctx, day(2024, 2, 20))
	require.NoError(t, err)
	assert.Equal(t, FineRefresh{}, res)
	final, _ := fineFor(t, db, out.LoanID)
	assert.Equal(t, 2.50, final)

	var rows int
	require.NoError(t, db.db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM fines`))
	assert.Equal(t, 1, rows, "fine rows are updated in place")
}

func TestRefreshFines_ConcurrentIsIdempotent(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	seedBook(t, db, prideISBN, "Pride and Prejudice", "Jane Austen")
	card := seedBorrower(t, db, "111-11-1111", "Alice")

	out, err := db.Checkout(ctx, prideISBN, card, day(2023, 12, 18)) // due 2024-01-01
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]FineRefresh, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = db.RefreshFines(ctx, day(2024, 1, 5))
		}(i)
	}
	wg.Wait()

	var inserted, updated int64
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		inserted += results[i].InsertedUnreturned + results[i].InsertedReturned
		updated += results[i].Updated
	}
	assert.Equal(t, int64(1), inserted)
	assert.Zero(t, updated)

	var rows int
	require.NoError(t, db.db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM fines`))
	assert.Equal(t, 1, rows)
	amt, _ := fineFor(t, db, out.LoanID)
	assert.Equal(t, 1.00, amt)
}

func TestFines_TotalAndSettlement(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	seedBook(t, db, "111", "Dracula", "Bram Stoker")
	seedBook(t, db, "222", "Emma", "Jane Austen")
	seedBook(t, db, "333", "Persuasion", "Jane Austen")
	alice := seedBorrower(t, db, "111-11-1111", "Alice")
	bob := seedBorrower(t, db, "222-22-2222", "Bob")

	a1, err := db.Checkout(ctx, "111", alice, day(2023, 12, 18)) // due 2024-01-01
	require.NoError(t, err)
	_, err = db.Checkout(ctx, "222", alice, day(2023, 12, 20)) // due 2024-01-03
	require.NoError(t, err)
	_, err = db.Checkout(ctx, "333", bob, day(2024, 1, 1))
	require.NoError(t, err)
	_, err = db.Checkin(ctx, CheckinRequest{LoanID: a1.LoanID}, day(2024, 1, 11))
	require.NoError(t, err)

	_, err = db.RefreshFines(ctx, day(2024, 1, 13))
	require.NoError(t, err)

	sum, err := db.GetBorrowerFines(ctx, alice)
	require.NoError(t, err)
	require.True(t, sum.Success)
	assert.Equal(t, int64(1), sum.CardID)
	assert.Equal(t, 5.00, sum.TotalFine) // 2.50 + 10 days * 0.25

	// Unpaid fines block further checkouts.
	seedBook(t, db, "444", "Ivanhoe", "Walter Scott")
	res, err := db.Checkout(ctx, "444", alice, day(2024, 1, 13))
	require.NoError(t, err)
	assert.Equal(t, CodeUnpaidFines, res.Code)

	bobSum, err := db.GetBorrowerFines(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, bobSum.TotalFine)

	paid, err := db.PayFines(ctx, alice)
	require.NoError(t, err)
	require.True(t, paid.Success)
	assert.Equal(t, int64(2), paid.Changed)

	sum, err = db.GetBorrowerFines(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalFine)

	again, err := db.PayFines(ctx, alice)
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Zero(t, again.Changed)

	res, err = db.Checkout(ctx, "444", alice, day(2024, 1, 13))
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
}

func TestFines_UnknownAndInvalidCards(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	sum, err := db.GetBorrowerFines(ctx, "ID000099")
	require.NoError(t, err)
	assert.True(t, sum.Success)
	assert.Equal(t, int64(99), sum.CardID)
	assert.Zero(t, sum.TotalFine)

	sum, err = db.GetBorrowerFines(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidCard, sum.Code)

	paid, err := db.PayFines(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidCard, paid.Code)
}

package library

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"library-circulation/logging"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestManager(t *testing.T, clock *fakeClock) (*LibraryManager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	mgr, err := NewLibraryManager(filepath.Join(t.TempDir(), "lib.db"),
		WithLogger(logging.FromZap(zap.New(core))),
		WithClock(clock.now))
	require.NoError(t, err, "mgr")
	t.Cleanup(func() { mgr.Close() })
	return mgr, logs
}

func TestManager_TodayIsUTCDate(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 2024-01-01 21:30 EST is already 2024-01-02 in UTC.
	clock := &fakeClock{t: time.Date(2024, 1, 1, 21, 30, 0, 0, est)}
	mgr, _ := newTestManager(t, clock)
	assert.Equal(t, day(2024, 1, 2), mgr.today())
}

func TestManager_CirculationFollowsClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2023, 12, 18, 15, 4, 5, 0, time.UTC)}
	mgr, _ := newTestManager(t, clock)
	ctx := context.Background()

	id, err := mgr.AddAuthor(ctx, "Jane Austen")
	require.NoError(t, err)
	require.NoError(t, mgr.AddBook(ctx, prideISBN, "Pride and Prejudice", id))

	reg, err := mgr.RegisterBorrower(ctx, BorrowerInput{SSN: "111-11-1111", Name: "Alice", Address: "1 Main St"})
	require.NoError(t, err)
	require.True(t, reg.Success)
	card := FormatCardID(reg.CardID)

	out, err := mgr.Checkout(ctx, prideISBN, card)
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)

	loans, err := mgr.FindActiveLoans(ctx, LoanFilter{CardID: card})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "2023-12-18", loans[0].DateOut)
	assert.Equal(t, "2024-01-01", loans[0].DueDate)

	clock.t = time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC)
	in, err := mgr.Checkin(ctx, CheckinRequest{LoanID: out.LoanID})
	require.NoError(t, err)
	require.True(t, in.Success)

	res, err := mgr.RefreshFines(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.InsertedReturned)

	sum, err := mgr.GetBorrowerFines(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, 2.50, sum.TotalFine)

	paid, err := mgr.PayFines(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, int64(1), paid.Changed)

	b, err := mgr.GetBorrower(ctx, card)
	require.NoError(t, err)
	require.NotNil(t, b.Borrower)
	assert.Equal(t, "Alice", b.Borrower.Name)
}

func TestManager_LogsOutcomes(t *testing.T) {
	clock := &fakeClock{t: day(2024, 3, 1)}
	mgr, logs := newTestManager(t, clock)
	ctx := context.Background()

	res, err := mgr.Checkout(ctx, prideISBN, "ID000009")
	require.NoError(t, err)
	require.False(t, res.Success)

	rejected := logs.FilterMessage("checkout rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, string(CodeBorrowerNotFound), rejected[0].ContextMap()["code"])
	assert.Equal(t, "ID000009", rejected[0].ContextMap()["card_id"])

	_, err = mgr.RegisterBorrower(ctx, BorrowerInput{SSN: "1", Name: "Ann", Address: "x"})
	require.NoError(t, err)
	ok := logs.FilterMessage("register borrower").All()
	require.Len(t, ok, 1)
	assert.Equal(t, int64(1), ok[0].ContextMap()["card_id"])

	// Reads are not logged.
	before := logs.Len()
	_, err = mgr.ListAllBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, logs.Len())
}

func TestManager_LogsStorageFaults(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	db, mock := newMockDB(t)
	mgr := newManager(db, WithLogger(logging.FromZap(zap.New(core))), WithClock(func() time.Time { return day(2024, 1, 20) }))

	mock.ExpectBegin().WillReturnError(assert.AnError)

	_, err := mgr.RefreshFines(context.Background())
	require.Error(t, err)
	require.Len(t, logs.FilterMessage("refresh fines failed").All(), 1)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_MigrationOutputGoesToLogger(t *testing.T) {
	var std bytes.Buffer
	log.SetOutput(&std)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	core, logs := observer.New(zapcore.DebugLevel)
	mgr, err := NewLibraryManager(filepath.Join(t.TempDir(), "lib.db"), WithLogger(logging.FromZap(zap.New(core))))
	require.NoError(t, err)
	require.NoError(t, mgr.Close())

	migrations := logs.FilterField(zap.String("component", "migrations")).All()
	require.NotEmpty(t, migrations)
	for _, e := range migrations {
		assert.Equal(t, zapcore.DebugLevel, e.Level)
	}
	assert.Empty(t, std.String(), "nothing is written through the standard logger")
}

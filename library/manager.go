package library

import (
	"context"
	"time"

	"library-circulation/logging"
)

// LibraryManager is the engine façade: it owns the store, the clock and the
// logger, and is the only entry point adapters call.
type LibraryManager struct {
	db  *Database
	log logging.Logger
	now func() time.Time
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logging.Logger) Option {
	return func(lm *LibraryManager) { lm.log = l }
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.now = now }
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	lm := newManager(nil, opts...)
	db, err := NewDatabase(dbPath, lm.log)
	if err != nil {
		return nil, err
	}
	lm.db = db
	return lm, nil
}

func newManager(db *Database, opts ...Option) *LibraryManager {
	lm := &LibraryManager{db: db, log: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// today is the current UTC calendar date.
func (lm *LibraryManager) today() time.Time {
	y, m, d := lm.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// observe logs the outcome of a mutating operation and passes err through.
func (lm *LibraryManager) observe(ctx context.Context, op string, o Outcome, err error, args ...any) {
	if err != nil {
		lm.log.Error(ctx, op+" failed", append(args, "error", err)...)
		return
	}
	if !o.Success {
		lm.log.Info(ctx, op+" rejected", append(args, "code", string(o.Code))...)
		return
	}
	lm.log.Info(ctx, op, args...)
}

// ------------------ Catalog ------------------

func (lm *LibraryManager) SearchBooks(ctx context.Context, term string) ([]BookRow, error) {
	return lm.db.SearchBooks(ctx, term)
}

func (lm *LibraryManager) BooksByAuthor(ctx context.Context, name string) ([]BookRow, error) {
	return lm.db.BooksByAuthor(ctx, name)
}

func (lm *LibraryManager) ListAllBooks(ctx context.Context) ([]BookRow, error) {
	return lm.db.ListAllBooks(ctx)
}

func (lm *LibraryManager) ListAllAuthors(ctx context.Context) ([]Author, error) {
	return lm.db.ListAllAuthors(ctx)
}

func (lm *LibraryManager) IsBookAvailable(ctx context.Context, isbn string) (bool, error) {
	return lm.db.IsBookAvailable(ctx, isbn)
}

func (lm *LibraryManager) AddAuthor(ctx context.Context, name string) (int64, error) {
	return lm.db.AddAuthor(ctx, name)
}

func (lm *LibraryManager) AddBook(ctx context.Context, isbn, title string, authorIDs ...int64) error {
	return lm.db.AddBook(ctx, isbn, title, authorIDs...)
}

// ------------------ Circulation ------------------

// Checkout lends a book; see Database.Checkout for the rule order.
func (lm *LibraryManager) Checkout(ctx context.Context, isbn, cardID string) (LoanResult, error) {
	res, err := lm.db.Checkout(ctx, isbn, cardID, lm.today())
	lm.observe(ctx, "checkout", res.Outcome, err, "isbn", isbn, "card_id", cardID, "loan_id", res.LoanID)
	return res, err
}

func (lm *LibraryManager) Checkin(ctx context.Context, req CheckinRequest) (LoanResult, error) {
	res, err := lm.db.Checkin(ctx, req, lm.today())
	lm.observe(ctx, "checkin", res.Outcome, err,
		"loan_id", res.LoanID, "requested_loan_id", req.LoanID, "card_id", req.CardID, "isbn", req.ISBN)
	return res, err
}

func (lm *LibraryManager) FindActiveLoans(ctx context.Context, f LoanFilter) ([]ActiveLoan, error) {
	return lm.db.FindActiveLoans(ctx, f)
}

func (lm *LibraryManager) RegisterBorrower(ctx context.Context, in BorrowerInput) (RegistrationResult, error) {
	res, err := lm.db.RegisterBorrower(ctx, in)
	lm.observe(ctx, "register borrower", res.Outcome, err, "card_id", res.CardID)
	return res, err
}

func (lm *LibraryManager) GetBorrower(ctx context.Context, cardID string) (BorrowerResult, error) {
	return lm.db.GetBorrower(ctx, cardID)
}

// ------------------ Fines ------------------

func (lm *LibraryManager) RefreshFines(ctx context.Context) (FineRefresh, error) {
	res, err := lm.db.RefreshFines(ctx, lm.today())
	lm.observe(ctx, "refresh fines", Outcome{Success: true}, err,
		"inserted_returned", res.InsertedReturned,
		"inserted_unreturned", res.InsertedUnreturned,
		"updated", res.Updated)
	return res, err
}

func (lm *LibraryManager) GetBorrowerFines(ctx context.Context, cardID string) (FinesSummary, error) {
	return lm.db.GetBorrowerFines(ctx, cardID)
}

func (lm *LibraryManager) PayFines(ctx context.Context, cardID string) (PaymentResult, error) {
	res, err := lm.db.PayFines(ctx, cardID)
	lm.observe(ctx, "pay fines", res.Outcome, err, "card_id", cardID, "changed", res.Changed)
	return res, err
}

package library

// Book is a catalog title keyed by ISBN. Authors are linked through book_authors.
type Book struct {
	ISBN  string `json:"isbn" db:"isbn"`
	Title string `json:"title" db:"title"`
}

// Author is a catalog author.
type Author struct {
	ID   int64  `json:"author_id" db:"author_id"`
	Name string `json:"name" db:"name"`
}

// BookRow is a book as returned by catalog reads: authors aggregated and
// availability computed from outstanding loans.
type BookRow struct {
	ISBN    string `json:"isbn"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Status  string `json:"status"` // StatusIn or StatusOut
}

// Availability values reported by catalog reads.
const (
	StatusIn  = "IN"
	StatusOut = "OUT"
)

// Borrower is a registered card holder.
type Borrower struct {
	CardID  int64  `json:"card_id" db:"card_id"`
	SSN     string `json:"ssn" db:"ssn"`
	Name    string `json:"name" db:"name"`
	Address string `json:"address" db:"address"`
	Phone   string `json:"phone" db:"phone"`
}

// BorrowerInput carries the fields accepted by RegisterBorrower.
type BorrowerInput struct {
	SSN     string `json:"ssn"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

// ActiveLoan is an outstanding loan enriched with title and borrower name.
type ActiveLoan struct {
	LoanID       int64  `json:"loan_id" db:"loan_id"`
	ISBN         string `json:"isbn" db:"isbn"`
	Title        string `json:"title" db:"title"`
	CardID       int64  `json:"card_id" db:"card_id"`
	BorrowerName string `json:"borrower_name" db:"borrower_name"`
	DateOut      string `json:"date_out" db:"date_out"`
	DueDate      string `json:"due_date" db:"due_date"`
}

// LoanFilter selects active loans. Provided fields are OR-ed together.
type LoanFilter struct {
	ISBN   string `json:"isbn,omitempty"`
	CardID string `json:"card_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// CheckinRequest addresses a loan either by LoanID or by the (CardID, ISBN) pair.
// LoanID takes precedence when non-zero.
type CheckinRequest struct {
	LoanID int64  `json:"loan_id,omitempty"`
	CardID string `json:"card_id,omitempty"`
	ISBN   string `json:"isbn,omitempty"`
}

// FineRefresh reports the rows touched by each refresh phase.
type FineRefresh struct {
	InsertedReturned   int64 `json:"insertedReturned"`
	InsertedUnreturned int64 `json:"insertedUnreturned"`
	Updated            int64 `json:"updated"`
}

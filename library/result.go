package library

// Code identifies why a circulation request was rejected.
type Code string

const (
	CodeMissingFields     Code = "missing-fields"
	CodeInvalidCard       Code = "invalid-card"
	CodeBorrowerNotFound  Code = "borrower-not-found"
	CodeBookNotFound      Code = "book-not-found"
	CodeLoanLimitExceeded Code = "loan-limit-exceeded"
	CodeUnpaidFines       Code = "unpaid-fines"
	CodeBookUnavailable   Code = "book-unavailable"
	CodeLoanNotActive     Code = "loan-not-active"
	CodeLoanNotFound      Code = "loan-not-found"
	CodeDuplicateSSN      Code = "duplicate-ssn"
)

// Outcome is the success/failure envelope shared by every mutating result.
// Business-rule rejections are reported here, never as a Go error.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    Code   `json:"code,omitempty"`
}

func succeeded(msg string) Outcome { return Outcome{Success: true, Message: msg} }

func rejected(code Code, msg string) Outcome {
	return Outcome{Success: false, Message: msg, Code: code}
}

// LoanResult is returned by Checkout and Checkin.
type LoanResult struct {
	Outcome
	LoanID int64 `json:"loan_id,omitempty"`
}

// RegistrationResult is returned by RegisterBorrower.
type RegistrationResult struct {
	Outcome
	CardID int64 `json:"card_id,omitempty"`
}

// BorrowerResult is returned by GetBorrower.
type BorrowerResult struct {
	Outcome
	Borrower *Borrower `json:"borrower,omitempty"`
}

// FinesSummary is returned by GetBorrowerFines.
type FinesSummary struct {
	Outcome
	CardID    int64   `json:"card_id"`
	TotalFine float64 `json:"total_fine"`
}

// PaymentResult is returned by PayFines.
type PaymentResult struct {
	Outcome
	Changed int64 `json:"changed"`
}

const (
	msgMissingCheckout = "ISBN and card ID are required"
	msgMissingCheckin  = "Provide a loan ID, or both a card ID and an ISBN"
	msgMissingBorrower = "SSN, name, and address are required"
	msgInvalidCard     = "Invalid card ID"
	msgNoBorrower      = "Borrower not found"
	msgNoBook          = "Book not found"
	msgLoanLimit       = "Borrower already has the maximum of 3 active loans"
	msgUnpaidFines     = "Borrower has unpaid fines"
	msgBookOut         = "Book is currently checked out"
	msgLoanNotActive   = "Loan not found or already checked in"
	msgLoanNotFound    = "No active loan found for this card and ISBN"
	msgDuplicateSSN    = "A borrower with this SSN already exists. Borrowers may hold exactly one library card."
)

package library

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCardID is returned by NormalizeCardID when the input does not
// reduce to a card number.
var ErrInvalidCardID = errors.New("invalid card id")

// NormalizeCardID accepts "123", "000123" or "ID000123" (prefix is
// case-insensitive) and returns 123. All-zero digits normalize to 0.
func NormalizeCardID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && strings.EqualFold(s[:2], "ID") {
		s = s[2:]
	}
	if s == "" {
		return 0, ErrInvalidCardID
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidCardID
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCardID, err)
	}
	return id, nil
}

// FormatCardID renders a card number the way it is printed on library cards.
func FormatCardID(id int64) string {
	return fmt.Sprintf("ID%06d", id)
}

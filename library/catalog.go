package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

const dialectSQLite = "sqlite3"

// bookAuthorRow is one (book, author) pair from the catalog join.
type bookAuthorRow struct {
	ISBN       string         `db:"isbn"`
	Title      string         `db:"title"`
	AuthorID   sql.NullInt64  `db:"author_id"`
	AuthorName sql.NullString `db:"author_name"`
	Status     string         `db:"status"`
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
// Both sides are folded with strings.ToLower (ulower in SQL).
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

func likeExpr(column, pattern string) exp.LiteralExpression {
	return goqu.L(`ulower(`+column+`) LIKE ? ESCAPE '\'`, pattern)
}

func authorMatchExpr(pattern string) exp.LiteralExpression {
	return goqu.L(`EXISTS (SELECT 1 FROM book_authors ba2 JOIN authors a2 ON a2.author_id = ba2.author_id
		WHERE ba2.isbn = "b"."isbn" AND ulower(a2.name) LIKE ? ESCAPE '\')`, pattern)
}

// bookQuery selects every (book, author) pair with the computed status,
// ordered by title case-insensitively and then by author id.
func bookQuery(where ...exp.Expression) (string, []any, error) {
	ds := goqu.Dialect(dialectSQLite).
		From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("book_authors").As("ba"), goqu.On(goqu.I("ba.isbn").Eq(goqu.I("b.isbn")))).
		LeftJoin(goqu.T("authors").As("a"), goqu.On(goqu.I("a.author_id").Eq(goqu.I("ba.author_id")))).
		Select(
			goqu.I("b.isbn"),
			goqu.I("b.title"),
			goqu.I("a.author_id"),
			goqu.I("a.name").As("author_name"),
			goqu.L(`CASE WHEN EXISTS (SELECT 1 FROM loans l WHERE l.isbn = "b"."isbn" AND l.date_in IS NULL)
				THEN 'OUT' ELSE 'IN' END`).As("status"),
		).
		Order(goqu.L(`ulower("b"."title")`).Asc(), goqu.I("b.isbn").Asc(), goqu.I("a.author_id").Asc()).
		Prepared(true)
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	return ds.ToSQL()
}

func (d *Database) queryBooks(ctx context.Context, where ...exp.Expression) ([]BookRow, error) {
	query, args, err := bookQuery(where...)
	if err != nil {
		return nil, fmt.Errorf("build book query: %w", err)
	}
	var rows []bookAuthorRow
	if err := d.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	return aggregateBooks(rows), nil
}

// aggregateBooks folds the join rows into one BookRow per ISBN, keeping row
// order and joining distinct author names with ", ".
func aggregateBooks(rows []bookAuthorRow) []BookRow {
	books := make([]BookRow, 0)
	index := make(map[string]int)
	seen := make(map[string]map[string]bool)
	for _, r := range rows {
		i, ok := index[r.ISBN]
		if !ok {
			i = len(books)
			index[r.ISBN] = i
			seen[r.ISBN] = make(map[string]bool)
			books = append(books, BookRow{ISBN: r.ISBN, Title: r.Title, Status: r.Status})
		}
		if !r.AuthorName.Valid || seen[r.ISBN][r.AuthorName.String] {
			continue
		}
		seen[r.ISBN][r.AuthorName.String] = true
		if books[i].Authors != "" {
			books[i].Authors += ", "
		}
		books[i].Authors += r.AuthorName.String
	}
	return books
}

// SearchBooks matches term as a case-insensitive substring of the ISBN, the
// title or any author name. A blank term yields no rows.
func (d *Database) SearchBooks(ctx context.Context, term string) ([]BookRow, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []BookRow{}, nil
	}
	p := likePattern(term)
	return d.queryBooks(ctx, goqu.Or(
		likeExpr(`"b"."isbn"`, p),
		likeExpr(`"b"."title"`, p),
		authorMatchExpr(p),
	))
}

// BooksByAuthor returns books with at least one author whose name contains name.
func (d *Database) BooksByAuthor(ctx context.Context, name string) ([]BookRow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return []BookRow{}, nil
	}
	return d.queryBooks(ctx, authorMatchExpr(likePattern(name)))
}

// ListAllBooks returns the whole catalog with availability.
func (d *Database) ListAllBooks(ctx context.Context) ([]BookRow, error) {
	return d.queryBooks(ctx)
}

// ListAllAuthors returns every author ordered by name.
func (d *Database) ListAllAuthors(ctx context.Context) ([]Author, error) {
	authors := make([]Author, 0)
	err := d.db.SelectContext(ctx, &authors,
		`SELECT author_id, name FROM authors ORDER BY name COLLATE NOCASE, author_id`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

// IsBookAvailable reports whether isbn has no outstanding loan.
func (d *Database) IsBookAvailable(ctx context.Context, isbn string) (bool, error) {
	var out bool
	err := d.db.GetContext(ctx, &out,
		`SELECT EXISTS(SELECT 1 FROM loans WHERE isbn=? AND date_in IS NULL)`, strings.TrimSpace(isbn))
	if err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return !out, nil
}

// ---------------------------------------------------------------------------
// Catalog writes
// ---------------------------------------------------------------------------

// AddAuthor inserts an author and returns its id.
func (d *Database) AddAuthor(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("author name cannot be empty")
	}
	res, err := d.db.ExecContext(ctx, `INSERT INTO authors(name) VALUES(?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert author: %w", err)
	}
	return res.LastInsertId()
}

// AddBook inserts (or retitles) a book and links it to authorIDs in one transaction.
func (d *Database) AddBook(ctx context.Context, isbn, title string, authorIDs ...int64) error {
	isbn, title = strings.TrimSpace(isbn), strings.TrimSpace(title)
	if isbn == "" || title == "" {
		return fmt.Errorf("isbn and title are required")
	}
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO books(isbn,title) VALUES(?,?) ON CONFLICT(isbn) DO UPDATE SET title=excluded.title`,
			isbn, title); err != nil {
			return fmt.Errorf("insert book: %w", err)
		}
		for _, id := range authorIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO book_authors(author_id,isbn) VALUES(?,?)`, id, isbn); err != nil {
				return fmt.Errorf("link author %d: %w", id, err)
			}
		}
		return nil
	})
}

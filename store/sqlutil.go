package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// SQL statement builders for the simple write shapes the credential store
// needs. Values are always bound as placeholders; the only text interpolated
// into a statement is an identifier that has passed ValidIdent. Builders for
// UPDATE and DELETE refuse to produce a statement without a WHERE clause.

var (
	// ErrBadIdentifier is returned when a table or column name fails the
	// identifier allow-list.
	ErrBadIdentifier = errors.New("store: invalid SQL identifier")
	// ErrEmptyWhere is returned when an UPDATE or DELETE is requested
	// without any WHERE columns.
	ErrEmptyWhere = errors.New("store: refusing statement without WHERE clause")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is safe to interpolate as a SQL identifier.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

func checkIdents(names ...string) error {
	for _, n := range names {
		if !ValidIdent(n) {
			return fmt.Errorf("%w: %q", ErrBadIdentifier, n)
		}
	}
	return nil
}

// BuildInsert returns an INSERT statement with $1..$n placeholders for the
// given columns, in order.
func BuildInsert(table string, columns []string) (string, error) {
	if err := checkIdents(append([]string{table}, columns...)...); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("store: insert into %s with no columns", table)
	}
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")), nil
}

// BuildUpdate returns an UPDATE statement setting setColumns and filtering on
// whereColumns. Placeholder numbering covers set values first, then where
// values. Returns ErrEmptyWhere if whereColumns is empty.
func BuildUpdate(table string, setColumns, whereColumns []string) (string, error) {
	if len(whereColumns) == 0 {
		return "", ErrEmptyWhere
	}
	all := append([]string{table}, setColumns...)
	all = append(all, whereColumns...)
	if err := checkIdents(all...); err != nil {
		return "", err
	}
	if len(setColumns) == 0 {
		return "", fmt.Errorf("store: update %s with no SET columns", table)
	}
	set := make([]string, len(setColumns))
	for i, c := range setColumns {
		set[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	where := make([]string, len(whereColumns))
	for i, c := range whereColumns {
		where[i] = fmt.Sprintf("%s = $%d", c, len(setColumns)+i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(set, ", "), strings.Join(where, " AND ")), nil
}

// BuildDelete returns a DELETE statement filtering on whereColumns.
// Returns ErrEmptyWhere if whereColumns is empty.
func BuildDelete(table string, whereColumns []string) (string, error) {
	if len(whereColumns) == 0 {
		return "", ErrEmptyWhere
	}
	if err := checkIdents(append([]string{table}, whereColumns...)...); err != nil {
		return "", err
	}
	where := make([]string, len(whereColumns))
	for i, c := range whereColumns {
		where[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s",
		table, strings.Join(where, " AND ")), nil
}

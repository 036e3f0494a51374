package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyTable    = errors.New("table has no records")
)

type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %q: %s %q", e.Table, ErrMissingColumn, e.Column)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

func requireColumns(table string, header []string, cols ...string) error {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}

	var errs []error
	for _, c := range cols {
		if c == "" {
			continue
		}
		if _, ok := present[c]; !ok {
			errs = append(errs, &MissingColumnError{Table: table, Column: c})
		}
	}
	return errors.Join(errs...)
}

// ParseBool reads a spreadsheet checkbox or typed boolean cell.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y", "✓", "✔":
		return true
	}
	return false
}

package sheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
	ErrWorksheetNotFound   = errors.New("worksheet not found")
	ErrEmptyWorksheet      = errors.New("worksheet has no header row")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrDuplicateColumn     = errors.New("duplicate column header")
	ErrNotRead             = errors.New("worksheet must be read before writing")
)

// Opener resolves a spreadsheet by name or id.
type Opener interface {
	Open(ctx context.Context, nameOrID string) (Spreadsheet, error)
}

type Spreadsheet interface {
	Title() string
	Worksheet(ctx context.Context, tab string) (Worksheet, error)
}

// Worksheet is one tab. WriteCell targets the row at readIndex of the last ReadAll and
// the column resolved by header name from that read.
type Worksheet interface {
	Title() string
	ReadAll(ctx context.Context) (Table, error)
	WriteCell(ctx context.Context, readIndex int, column string, value any) error
}

// Table is a header plus records keyed by header name, in stored order.
type Table struct {
	Header []string
	Rows   []map[string]string
}

func (t Table) ColumnIndex(name string) int {
	return indexOf(t.Header, name)
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// buildTable turns a raw grid (first row = header) into a Table. Short rows are
// padded; a repeated header name is rejected so reads and writes agree on a column.
func buildTable(tab string, grid [][]string) (Table, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return Table{}, fmt.Errorf("%q: %w", tab, ErrEmptyWorksheet)
	}

	header := make([]string, len(grid[0]))
	seen := make(map[string]bool, len(grid[0]))
	for i, h := range grid[0] {
		h = strings.TrimSpace(h)
		if h != "" && seen[h] {
			return Table{}, fmt.Errorf("%q: %w %q", tab, ErrDuplicateColumn, h)
		}
		seen[h] = true
		header[i] = h
	}

	rows := make([]map[string]string, 0, len(grid)-1)
	for _, raw := range grid[1:] {
		r := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(raw) {
				r[h] = strings.TrimSpace(raw[i])
			} else {
				r[h] = ""
			}
		}
		rows = append(rows, r)
	}
	return Table{Header: header, Rows: rows}, nil
}

// FormatValue renders a write value the way a sheet user would type it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

package sheet

import (
	"fmt"
	"strings"
)

// headerRows is the number of rows above the first record. Sheets are 1-indexed.
const headerRows = 1

// SheetRow maps a position in the read sequence to its 1-indexed sheet row.
func SheetRow(readIndex int) int {
	return readIndex + headerRows + 1
}

// ColumnLetter converts a 0-based column index to A1 letters (0 -> A, 26 -> AA).
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// CellAddress returns the A1 address of the cell at (readIndex, colIndex) on tab.
func CellAddress(tab string, readIndex, colIndex int) string {
	return fmt.Sprintf("%s!%s%d", quoteTab(tab), ColumnLetter(colIndex), SheetRow(readIndex))
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

package sheet

import (
	"context"
	"fmt"
	"sync"
)

// CellWrite records one WriteCell call against a MemoryWorksheet.
type CellWrite struct {
	Address string
	Row     int
	Column  string
	Value   string
}

// MemoryStore is an in-process spreadsheet used by tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string]*MemorySpreadsheet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string]*MemorySpreadsheet)}
}

func (s *MemoryStore) Add(title string) *MemorySpreadsheet {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss := &MemorySpreadsheet{title: title, tabs: make(map[string]*MemoryWorksheet)}
	s.sheets[title] = ss
	return ss
}

func (s *MemoryStore) Open(ctx context.Context, nameOrID string) (Spreadsheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sheets[nameOrID]
	if !ok {
		return nil, fmt.Errorf("%q: %w", nameOrID, ErrSpreadsheetNotFound)
	}
	return ss, nil
}

type MemorySpreadsheet struct {
	title string

	mu   sync.Mutex
	tabs map[string]*MemoryWorksheet
}

func (s *MemorySpreadsheet) Title() string {
	return s.title
}

// AddTab creates a worksheet whose first row is header.
func (s *MemorySpreadsheet) AddTab(title string, header []string, rows ...[]string) *MemoryWorksheet {
	s.mu.Lock()
	defer s.mu.Unlock()

	grid := [][]string{append([]string(nil), header...)}
	for _, r := range rows {
		grid = append(grid, append([]string(nil), r...))
	}
	ws := &MemoryWorksheet{title: title, grid: grid}
	s.tabs[title] = ws
	return ws
}

func (s *MemorySpreadsheet) Worksheet(ctx context.Context, tab string) (Worksheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("%q: %w", tab, ErrWorksheetNotFound)
	}
	return ws, nil
}

type MemoryWorksheet struct {
	title string

	mu       sync.Mutex
	grid     [][]string
	header   []string
	writes   []CellWrite
	reads    int
	WriteErr error
}

func (w *MemoryWorksheet) Title() string {
	return w.title
}

func (w *MemoryWorksheet) ReadAll(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	t, err := buildTable(w.title, w.grid)
	if err != nil {
		return Table{}, err
	}
	w.header = t.Header
	w.reads++
	return t, nil
}

func (w *MemoryWorksheet) WriteCell(ctx context.Context, readIndex int, column string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.header == nil {
		return ErrNotRead
	}
	if w.WriteErr != nil {
		return w.WriteErr
	}
	col := indexOf(w.header, column)
	if col < 0 {
		return fmt.Errorf("%q: %w %q", w.title, ErrUnknownColumn, column)
	}

	gridRow := readIndex + headerRows
	for len(w.grid) <= gridRow {
		w.grid = append(w.grid, nil)
	}
	for len(w.grid[gridRow]) <= col {
		w.grid[gridRow] = append(w.grid[gridRow], "")
	}

	v := FormatValue(value)
	w.grid[gridRow][col] = v
	w.writes = append(w.writes, CellWrite{
		Address: CellAddress(w.title, readIndex, col),
		Row:     readIndex,
		Column:  column,
		Value:   v,
	})
	return nil
}

// Writes returns a copy of every cell written so far.
func (w *MemoryWorksheet) Writes() []CellWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]CellWrite(nil), w.writes...)
}

// Cell returns the current value at (readIndex, column), or "" when absent.
func (w *MemoryWorksheet) Cell(readIndex int, column string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	col := indexOf(w.grid[0], column)
	gridRow := readIndex + headerRows
	if col < 0 || gridRow >= len(w.grid) || col >= len(w.grid[gridRow]) {
		return ""
	}
	return w.grid[gridRow][col]
}

func (w *MemoryWorksheet) Reads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reads
}

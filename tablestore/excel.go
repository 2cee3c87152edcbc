package tablestore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// ExcelStore maps tables to worksheets of one xlsx workbook on disk.
// Every call opens, edits and saves the workbook.
type ExcelStore struct {
	mu   sync.Mutex
	path string
}

func NewExcelStore(path string) *ExcelStore {
	return &ExcelStore{path: path}
}

func (s *ExcelStore) Path() string {
	return s.path
}

func (s *ExcelStore) open(create bool) (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, false, nil
	}
	if create && errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("open workbook %s: %w", s.path, err)
}

func hasSheet(f *excelize.File, name string) bool {
	return slices.Contains(f.GetSheetList(), name)
}

func (s *ExcelStore) ReadTable(ctx context.Context, name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _, err := s.open(false)
	if errors.Is(err, os.ErrNotExist) {
		return nil, tableNotFound(name)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !hasSheet(f, name) {
		return nil, tableNotFound(name)
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	t := &Table{Name: name}
	for i, cells := range rows {
		if i == 0 {
			t.Headers = cells
			continue
		}
		r := make(Row, len(cells))
		for j, c := range cells {
			r[j] = c
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

func (s *ExcelStore) WriteTable(ctx context.Context, name string, headers []string, batches iter.Seq[[]Row]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, fresh, err := s.open(true)
	if err != nil {
		return err
	}
	defer f.Close()

	// Replace by recreating the sheet; a workbook always keeps one sheet.
	if hasSheet(f, name) {
		tmp := "__replacing__"
		if err := f.SetSheetName(name, tmp); err != nil {
			return err
		}
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := f.DeleteSheet(tmp); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	rowNo := 2
	for batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, r := range batch {
			cell, _ := excelize.CoordinatesToCellName(1, rowNo)
			if err := sw.SetRow(cell, sheetValues(r)); err != nil {
				return fmt.Errorf("write %s row %d: %w", name, rowNo, err)
			}
			rowNo++
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	if fresh && name != defaultSheet && hasSheet(f, defaultSheet) {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return err
		}
	}
	return f.SaveAs(s.path)
}

func (s *ExcelStore) ListTables(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _, err := s.open(false)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names := f.GetSheetList()
	sort.Strings(names)
	return names, nil
}

func (s *ExcelStore) DeleteTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _, err := s.open(false)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	if !hasSheet(f, name) {
		return nil
	}
	if len(f.GetSheetList()) == 1 {
		// keep a blank sheet so the workbook stays valid
		if _, err := f.NewSheet(defaultSheet); err != nil {
			return err
		}
	}
	if err := f.DeleteSheet(name); err != nil {
		return err
	}
	return f.SaveAs(s.path)
}

func (s *ExcelStore) edit(name string, fn func(f *excelize.File) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _, err := s.open(false)
	if errors.Is(err, os.ErrNotExist) {
		return tableNotFound(name)
	}
	if err != nil {
		return err
	}
	defer f.Close()
	if !hasSheet(f, name) {
		return tableNotFound(name)
	}
	if err := fn(f); err != nil {
		return err
	}
	return f.SaveAs(s.path)
}

func (s *ExcelStore) DeleteRows(ctx context.Context, name string, rowIdx ...int) error {
	idx := slices.Clone(rowIdx)
	sort.Sort(sort.Reverse(sort.IntSlice(idx)))
	idx = slices.Compact(idx)
	return s.edit(name, func(f *excelize.File) error {
		for _, i := range idx {
			if i < 0 {
				return ErrRowOutOfRange
			}
			if err := f.RemoveRow(name, i+2); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ExcelStore) UpdateRow(ctx context.Context, name string, rowIdx int, row Row) error {
	if rowIdx < 0 {
		return ErrRowOutOfRange
	}
	return s.edit(name, func(f *excelize.File) error {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		values := sheetValues(row)
		return f.SetSheetRow(name, cell, &values)
	})
}

func (s *ExcelStore) AppendRows(ctx context.Context, name string, rows []Row) error {
	return s.edit(name, func(f *excelize.File) error {
		existing, err := f.GetRows(name)
		if err != nil {
			return err
		}
		next := len(existing) + 1
		for _, r := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, next)
			values := sheetValues(r)
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return err
			}
			next++
		}
		return nil
	})
}

package tablestore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore maps tables to tabs of one Google spreadsheet.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
}

func NewSheetsStore(svc *sheets.Service, spreadsheetID string) *SheetsStore {
	return &SheetsStore{svc: svc, spreadsheetID: spreadsheetID}
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func (s *SheetsStore) sheetIDs(ctx context.Context) (map[string]int64, error) {
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %s: %w", s.spreadsheetID, err)
	}
	ids := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return ids, nil
}

func (s *SheetsStore) sheetID(ctx context.Context, name string) (int64, error) {
	ids, err := s.sheetIDs(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := ids[name]
	if !ok {
		return 0, tableNotFound(name)
	}
	return id, nil
}

func (s *SheetsStore) ReadTable(ctx context.Context, name string) (*Table, error) {
	if _, err := s.sheetID(ctx, name); err != nil {
		return nil, err
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(name)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	t := &Table{Name: name}
	for i, values := range resp.Values {
		if i == 0 {
			for _, h := range values {
				t.Headers = append(t.Headers, strings.TrimSpace(fmt.Sprint(h)))
			}
			continue
		}
		t.Rows = append(t.Rows, Row(values))
	}
	return t, nil
}

func (s *SheetsStore) WriteTable(ctx context.Context, name string, headers []string, batches iter.Seq[[]Row]) error {
	ids, err := s.sheetIDs(ctx)
	if err != nil {
		return err
	}
	if _, ok := ids[name]; !ok {
		if err := s.addSheet(ctx, name); err != nil {
			return err
		}
	}
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, quoteSheet(name), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := s.update(ctx, name, 1, [][]any{header}); err != nil {
		return err
	}

	next := 2
	for batch := range batches {
		values := make([][]any, len(batch))
		for i, r := range batch {
			values[i] = sheetValues(r)
		}
		if err := s.update(ctx, name, next, values); err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", next, err)
		}
		next += len(batch)
	}
	return nil
}

func (s *SheetsStore) update(ctx context.Context, name string, startRow int, values [][]any) error {
	rng := fmt.Sprintf("%s!A%d", quoteSheet(name), startRow)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (s *SheetsStore) addSheet(ctx context.Context, name string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	return nil
}

func (s *SheetsStore) ListTables(ctx context.Context) ([]string, error) {
	ids, err := s.sheetIDs(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ids))
	for n := range ids {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *SheetsStore) DeleteTable(ctx context.Context, name string) error {
	id, err := s.sheetID(ctx, name)
	if errors.Is(err, ErrTableNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteSheet: &sheets.DeleteSheetRequest{SheetId: id},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete sheet %s: %w", name, err)
	}
	return nil
}

// DeleteRows removes data rows highest index first so earlier indexes stay valid.
func (s *SheetsStore) DeleteRows(ctx context.Context, name string, rowIdx ...int) error {
	if len(rowIdx) == 0 {
		return nil
	}
	id, err := s.sheetID(ctx, name)
	if err != nil {
		return err
	}
	idx := append([]int(nil), rowIdx...)
	sort.Sort(sort.Reverse(sort.IntSlice(idx)))
	var requests []*sheets.Request
	last := -1
	for _, i := range idx {
		if i == last {
			continue
		}
		last = i
		requests = append(requests, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    id,
					Dimension:  "ROWS",
					StartIndex: int64(i + 1),
					EndIndex:   int64(i + 2),
				},
			},
		})
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows in %s: %w", name, err)
	}
	return nil
}

func (s *SheetsStore) UpdateRow(ctx context.Context, name string, rowIdx int, row Row) error {
	if rowIdx < 0 {
		return ErrRowOutOfRange
	}
	return s.update(ctx, name, rowIdx+2, [][]any{sheetValues(row)})
}

func (s *SheetsStore) AppendRows(ctx context.Context, name string, rows []Row) error {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = sheetValues(r)
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteSheet(name), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to sheet %s: %w", name, err)
	}
	return nil
}

// sheetValues converts cells to JSON-safe values the Sheets API accepts.
func sheetValues(r Row) []any {
	out := make([]any, len(r))
	for i, v := range r {
		switch x := v.(type) {
		case nil:
			out[i] = ""
		case time.Time:
			if x.IsZero() {
				out[i] = ""
			} else {
				out[i] = x.Format("2006-01-02")
			}
		case decimal.Decimal:
			out[i] = x.InexactFloat64()
		default:
			out[i] = x
		}
	}
	return out
}

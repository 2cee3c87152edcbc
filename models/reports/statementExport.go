package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

func sanitizeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']', ' ':
			return '-'
		}
		return r
	}, id)
}

func sheetName(prefix, id string) string {
	name := prefix + sanitizeName(id)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

func setRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// ExportStatement renders a statement as an xlsx workbook: a Summary sheet
// and one detail sheet per contract.
func ExportStatement(st *CustomerStatement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	rows := [][]interface{}{
		{"Customer", st.CustomerName},
		{"Contracts", strings.Join(st.ContractIds, ", ")},
		{"Total Invoiced", st.Totals.Invoiced.InexactFloat64()},
		{"Total Paid", st.Totals.Paid.InexactFloat64()},
		{"Outstanding", st.Totals.Outstanding.InexactFloat64()},
		{},
	}
	for i, r := range rows {
		if err := setRow(f, summary, i+1, r); err != nil {
			return nil, err
		}
	}
	rowNo := len(rows) + 1
	header := make([]interface{}, len(SummarisedHeaders))
	for i, h := range SummarisedHeaders {
		header[i] = h
	}
	if err := setRow(f, summary, rowNo, header); err != nil {
		return nil, err
	}
	for _, s := range st.Summary {
		rowNo++
		values := make([]interface{}, len(SummarisedHeaders))
		for i, h := range SummarisedHeaders {
			values[i] = s[h]
		}
		if err := setRow(f, summary, rowNo, values); err != nil {
			return nil, err
		}
	}

	byContract := map[string][]map[string]string{}
	var order []string
	for _, d := range st.Details {
		id := d["Contract ID"]
		if _, ok := byContract[id]; !ok {
			order = append(order, id)
		}
		byContract[id] = append(byContract[id], d)
	}
	for _, id := range order {
		name := sheetName("Detail ", id)
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		header := make([]interface{}, len(st.DetailHeaders))
		for i, h := range st.DetailHeaders {
			header[i] = h
		}
		if err := setRow(f, name, 1, header); err != nil {
			return nil, err
		}
		for n, d := range byContract[id] {
			values := make([]interface{}, len(st.DetailHeaders))
			for i, h := range st.DetailHeaders {
				values[i] = d[h]
			}
			if err := setRow(f, name, n+2, values); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PublishStatement uploads the workbook to GCS and returns a signed download link.
func PublishStatement(ctx context.Context, st *CustomerStatement, data []byte, expires time.Duration) (*utils.SignedDownload, error) {
	filename := "statement_" + sanitizeName(strings.Join(st.ContractIds, "_")) + ".xlsx"
	objectName := fmt.Sprintf("statements/%s/%s", time.Now().UTC().Format("2006-01-02"), filename)
	if err := utils.UploadFileToGCS(ctx, objectName, utils.XlsxContentType, data); err != nil {
		return nil, err
	}
	return utils.SignDownload(ctx, objectName, filename, expires)
}

package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser converts spreadsheets into per-sheet arrays of row objects,
// keyed by each sheet's header row. Financial exports are usually one record
// per row, which maps directly onto the instance shape the extraction model
// looks for.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xls"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := make(map[string][]map[string]string)
	var text strings.Builder

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		header := rows[0]
		records := make([]map[string]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			record := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(row) {
					record[col] = row[i]
				}
			}
			records = append(records, record)
		}
		sheets[sheet] = records

		text.WriteString(sheet + "\n")
		for _, row := range rows {
			text.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
	}

	if len(sheets) == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}

	payload, err := json.Marshal(sheets)
	if err != nil {
		return nil, fmt.Errorf("encoding XLSX sheets: %w", err)
	}

	return &Document{
		Payload: payload,
		Text:    text.String(),
		Method:  "native",
	}, nil
}

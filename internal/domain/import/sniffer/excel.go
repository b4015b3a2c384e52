package sniffer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxMagic is the ZIP local-file-header signature; XLSX workbooks are ZIP
// containers.
var xlsxMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// IsExcel reports whether the payload looks like an XLSX workbook.
func IsExcel(data []byte) bool {
	return bytes.HasPrefix(data, xlsxMagic)
}

// Sheet names preferred over the first sheet when present.
var preferredSheets = []string{"activities", "transactions", "trades", "history"}

// excelRecords converts the data sheet of an XLSX workbook into the same
// record shape the CSV path produces, so everything downstream is
// format-agnostic.
func excelRecords(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := pickSheet(f)
	if sheet == "" {
		return nil, ErrNoDataRows
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func pickSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, name := range sheets {
		lower := strings.ToLower(name)
		for _, preferred := range preferredSheets {
			if strings.Contains(lower, preferred) {
				return name
			}
		}
	}
	return sheets[0]
}

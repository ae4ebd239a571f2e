package measure

import (
	"fmt"
	"io"

	"Acta/internal/calc/protocol"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook reads the measurement source from the first sheet of an xlsx
// workbook laid out like the delimited source, one line per row. Metadata rows
// are read as displayed so dates keep their format; reading rows are read as
// stored so a cell number format cannot round them.
func ReadWorkbook(spec protocol.Spec, r io.Reader) (Metadata, []RawReading, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Metadata{}, nil, &SourceError{Protocol: spec.ID, Reason: fmt.Sprintf("invalid workbook: %v", err)}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	shown, err := f.GetRows(sheet)
	if err != nil {
		return Metadata{}, nil, &SourceError{Protocol: spec.ID, Reason: fmt.Sprintf("read sheet %q: %v", sheet, err)}
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Metadata{}, nil, &SourceError{Protocol: spec.ID, Reason: fmt.Sprintf("read sheet %q: %v", sheet, err)}
	}

	records := make([]Record, 0, len(raw))
	for i, row := range raw {
		if blank(Record{Fields: row}) {
			continue
		}
		if len(records) < 3 && i < len(shown) {
			row = shown[i]
		}
		records = append(records, Record{Line: i + 1, Fields: row})
	}
	return ParseRecords(spec, records)
}

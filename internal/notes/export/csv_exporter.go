package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	Delimiter       rune
	UseCRLF         bool
	TimestampFormat string
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	}
}

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t Table, options CSVOptions) error {
	writer := csv.NewWriter(w)
	writer.Comma = options.Delimiter
	writer.UseCRLF = options.UseCRLF

	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatText(row[i], options.TimestampFormat)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

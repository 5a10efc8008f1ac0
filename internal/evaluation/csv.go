package evaluation

import (
	"encoding/csv"
	"fmt"
	"os"
)

// loadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers (column names).
func loadCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("evaluation: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("evaluation: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("evaluation: %s is empty (no header row)", path)
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("evaluation: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

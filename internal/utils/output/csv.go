package output

import (
	"encoding/csv"
	"fmt"
	"os"
)

// SaveCSV writes header followed by rows to filepath. Every row must have as
// many cells as header.
func SaveCSV(header []string, rows [][]string, filepath string) error {
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(header))
		}
	}

	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}
